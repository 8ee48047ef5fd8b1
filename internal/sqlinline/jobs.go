// Package sqlinline holds every SQL statement the repositories execute. Each
// constant starts with a `--sql <uuid>` audit marker; the sqllint tool fails
// the build when a statement is missing one, and the SQL runner logs the
// marker with every execution so production queries can be traced back here.
package sqlinline

const QJobInsert = `--sql 1d0c3a58-7f21-4a7e-9c44-88b2f4f3a901
INSERT INTO jobs (id, variant, status, failed_at_stage, current_step, error_message,
                  input, artifacts, segments, pending_action, rework_stage, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
`

const QJobGet = `--sql 6b91e2cf-3d04-4f6a-b1d7-2c5e9a0f4d22
SELECT id, variant, status, failed_at_stage, current_step, error_message,
       input, artifacts, segments, pending_action, rework_stage, created_at, updated_at
FROM jobs
WHERE id = $1
`

const QJobUpdate = `--sql f4a7b3d9-8e12-4c5b-a6f0-1d9c2e8b7a43
UPDATE jobs
SET status = $2,
    failed_at_stage = $3,
    current_step = $4,
    error_message = $5,
    artifacts = $6,
    segments = $7,
    pending_action = $8,
    rework_stage = $9,
    updated_at = now()
WHERE id = $1
`

const QSelectProviderToken = `--sql 3e8d1c6a-5b92-4f07-8a3d-6c1e4b9f2a58
SELECT token FROM provider_tokens WHERE provider = $1
`

const QUpsertProviderToken = `--sql b7f2a9e4-1c63-4d58-9b07-3f8e5a2c6d14
INSERT INTO provider_tokens (provider, token, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (provider) DO UPDATE SET token = EXCLUDED.token, updated_at = now()
`

const QJobClaimAction = `--sql 9c2e5f17-0a8b-4d3c-9e61-7b4f8a2d5c09
WITH next_job AS (
    SELECT id, pending_action
    FROM jobs
    WHERE pending_action <> ''
    ORDER BY updated_at ASC
    FOR UPDATE SKIP LOCKED
    LIMIT 1
),
claimed AS (
    UPDATE jobs
    SET pending_action = '', updated_at = now()
    WHERE id IN (SELECT id FROM next_job)
    RETURNING id, variant, status, failed_at_stage, current_step, error_message,
              input, artifacts, segments, (SELECT pending_action FROM next_job) AS pending_action,
              rework_stage, created_at, updated_at
)
SELECT * FROM claimed
`
