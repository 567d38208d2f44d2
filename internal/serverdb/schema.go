package serverdb

// ServerSchemaVersion is the current server database schema version
const ServerSchemaVersion = 1

const serverSchema = `
-- Synchronized records. The body is opaque JSON owned by the domain layer;
-- pending is the sorted JSON array of device ids that have not yet received
-- this revision.
CREATE TABLE IF NOT EXISTS records (
    id         TEXT PRIMARY KEY,
    revision   TEXT NOT NULL,
    body       JSON NOT NULL DEFAULT 'null',
    pending    JSON NOT NULL DEFAULT '[]',
    tombstoned INTEGER NOT NULL DEFAULT 0,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Registered devices. authorized=0 means read-only.
CREATE TABLE IF NOT EXISTS devices (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    authorized INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Migration represents a single schema migration.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations lists schema migrations in order. The base schema is version 1;
// future changes append here.
var Migrations = []Migration{}
