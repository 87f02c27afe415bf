package credentials

const qSelectProviderKey = `--sql 3e9d5b18-61c4-4c0e-a7f2-5b8c1d0e6a49
select token
from provider_keys
where provider = $1::text
limit 1;
`

const qUpsertProviderKey = `--sql c4a17f02-9b3e-4d86-8e51-2f7a6c9d0b13
insert into provider_keys (provider, token, properties, created_at, updated_at)
values ($1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb), now(), now())
on conflict (provider) do update set
    token = excluded.token,
    properties = excluded.properties,
    updated_at = now();
`

// Schema creates the provider_keys table used by the store.
const Schema = `--sql 91f0e2c6-4b7a-4d3e-b5c8-7a2e1f6d0c54
create table if not exists provider_keys (
    provider text primary key,
    token text not null,
    properties jsonb not null default '{}'::jsonb,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
`
