package sqlinline

const QSelectAuthorizedUser = `--sql 7c2571f5-69c1-47a0-a8bc-f9644a160f83
select email_key, email, name, role, updated_at, updated_by
from authorized_users
where email_key = $1::text;
`

const QListAuthorizedUsers = `--sql 8b8e709f-73d3-4b65-add6-12c8f79755c7
select email_key, email, name, role, updated_at, updated_by
from authorized_users
order by email asc;
`

const QUpsertAuthorizedUser = `--sql 78f16aad-cf72-478c-9f15-6ecb0f0db7b9
insert into authorized_users(email_key, email, name, role, updated_at, updated_by)
values ($1::text, $2::text, $3::text, $4::text, $5::timestamptz, $6::text)
on conflict (email_key) do update set
  email = excluded.email,
  name = excluded.name,
  role = excluded.role,
  updated_at = excluded.updated_at,
  updated_by = excluded.updated_by;
`

const QDeleteAuthorizedUser = `--sql 48382634-6721-4019-b79b-dfd97aea6070
delete from authorized_users
where email_key = $1::text;
`
