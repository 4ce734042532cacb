// Copyright 2018 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package pgstore

// schema creates the favorites table when missing and upgrades tables created
// by earlier deployments, which lack the status column and token index.
const schema = `
CREATE TABLE IF NOT EXISTS user_favorite_llm (
	id           BIGSERIAL PRIMARY KEY,
	fid          BIGINT      NOT NULL,
	favorite_llm TEXT        NOT NULL,
	token_id     BIGINT,
	tx           TEXT,
	image_url    TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

ALTER TABLE user_favorite_llm
	ADD COLUMN IF NOT EXISTS mint_status TEXT NOT NULL DEFAULT 'unsubmitted';

UPDATE user_favorite_llm
SET mint_status = CASE
		WHEN token_id IS NOT NULL THEN 'confirmed'
		WHEN tx IS NOT NULL THEN 'pending'
		ELSE mint_status
	END
WHERE mint_status = 'unsubmitted';

CREATE UNIQUE INDEX IF NOT EXISTS user_favorite_llm_token_id_key
	ON user_favorite_llm (token_id) WHERE token_id IS NOT NULL;

CREATE INDEX IF NOT EXISTS user_favorite_llm_fid_created_idx
	ON user_favorite_llm (fid, created_at DESC);

CREATE INDEX IF NOT EXISTS user_favorite_llm_tx_idx
	ON user_favorite_llm (lower(tx));
`

const rowColumns = `id, fid, favorite_llm, token_id, tx, image_url, mint_status, created_at`

// updateRow writes only into empty columns and refuses conflicting values,
// which keeps concurrent reconciliations of one row convergent.  No row comes
// back when the row is missing or a conflict was refused.
const updateRow = `
UPDATE user_favorite_llm
SET tx          = COALESCE(tx, lower($2)),
    token_id    = COALESCE(token_id, $3),
    mint_status = CASE
		WHEN COALESCE(token_id, $3) IS NOT NULL THEN 'confirmed'
		ELSE COALESCE($4, mint_status)
	END
WHERE id = $1
  AND ($2::text IS NULL OR tx IS NULL OR lower(tx) = lower($2))
  AND ($3::bigint IS NULL OR token_id IS NULL OR token_id = $3)
RETURNING ` + rowColumns
