package sqlinline

const QInsertAuditEntry = `--sql 08bdf91d-404b-42a0-a462-522dc40d39ff
insert into audit_log(id, action, partition, data, previous_data, user_email, user_name, created_at)
values ($1::uuid, $2::text, $3::text, coalesce($4::jsonb, '{}'::jsonb), $5::jsonb, $6::text, $7::text, $8::timestamptz);
`

const QListAuditEntries = `--sql 3292fa0e-8b1a-4095-8e85-3a3087104d5b
select id, action, partition, data, previous_data, user_email, user_name, created_at
from audit_log
where ($2::text = '' or action = $2::text)
order by created_at desc
limit $1::int;
`
