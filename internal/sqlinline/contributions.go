package sqlinline

const QListContributions = `--sql 61e75f28-0a26-4f05-8d9d-abaf83809cb1
select
  id,
  sno,
  sno_text,
  date,
  name,
  phone,
  amount,
  added_at,
  added_by,
  updated_at,
  updated_by,
  uploaded_at,
  uploaded_by
from contributions
where partition = $1::text
order by sno asc, id asc;
`

const QSelectContribution = `--sql 0e83b64f-5aa1-4e11-8fb8-208c213a9d90
select
  id,
  sno,
  sno_text,
  date,
  name,
  phone,
  amount,
  added_at,
  added_by,
  updated_at,
  updated_by,
  uploaded_at,
  uploaded_by
from contributions
where partition = $1::text and id = $2::text
limit 1;
`

const QUpsertContribution = `--sql 973df320-6ad0-4b57-9efb-9dc176e3a51b
insert into contributions(
  partition,
  id,
  sno,
  sno_text,
  date,
  name,
  phone,
  amount,
  added_at,
  added_by,
  updated_at,
  updated_by,
  uploaded_at,
  uploaded_by
) values (
  $1::text,
  $2::text,
  $3::bigint,
  $4::text,
  $5::text,
  $6::text,
  $7::text,
  $8::text,
  $9::timestamptz,
  $10::text,
  $11::timestamptz,
  $12::text,
  $13::timestamptz,
  $14::text
)
on conflict (partition, id) do update set
  sno = excluded.sno,
  sno_text = excluded.sno_text,
  date = excluded.date,
  name = excluded.name,
  phone = excluded.phone,
  amount = excluded.amount,
  added_at = excluded.added_at,
  added_by = excluded.added_by,
  updated_at = excluded.updated_at,
  updated_by = excluded.updated_by,
  uploaded_at = excluded.uploaded_at,
  uploaded_by = excluded.uploaded_by;
`

const QDeleteContribution = `--sql cb1a4378-79bc-4fd5-9789-a5f9fbdde77a
delete from contributions
where partition = $1::text and id = $2::text;
`
