package sqlinline

const QSelectPartitionCounter = `--sql 82dd497b-a32a-4cce-9de1-70536414b119
select last_sno
from partition_counters
where partition = $1::text;
`

// QSetPartitionCounter overwrites the stored value; the last writer wins.
const QSetPartitionCounter = `--sql f2f0bb71-dbe3-4d06-bd9f-9eeaa243cd88
insert into partition_counters(partition, last_sno, updated_at)
values ($1::text, $2::bigint, now())
on conflict (partition) do update set
  last_sno = excluded.last_sno,
  updated_at = now();
`
