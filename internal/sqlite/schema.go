package sqlite

// Schema DDL. The database is rebuilt from the JSONL files on every Attach.
const (
	createContainers = `CREATE TABLE containers (
    container_id TEXT PRIMARY KEY,
    zone TEXT NOT NULL,
    width REAL NOT NULL,
    depth REAL NOT NULL,
    height REAL NOT NULL
);`

	createItems = `CREATE TABLE items (
    item_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    width REAL NOT NULL,
    depth REAL NOT NULL,
    height REAL NOT NULL,
    mass REAL NOT NULL DEFAULT 0,
    priority INTEGER NOT NULL DEFAULT 0,
    expiry_date TEXT,
    usage_limit INTEGER,
    current_uses INTEGER NOT NULL DEFAULT 0,
    preferred_zone TEXT NOT NULL DEFAULT '',
    is_waste INTEGER NOT NULL DEFAULT 0,
    disposed INTEGER NOT NULL DEFAULT 0
);`

	createPlacements = `CREATE TABLE placements (
    item_id TEXT PRIMARY KEY,
    container_id TEXT NOT NULL,
    start_width REAL NOT NULL,
    start_depth REAL NOT NULL,
    start_height REAL NOT NULL,
    end_width REAL NOT NULL,
    end_depth REAL NOT NULL,
    end_height REAL NOT NULL,
    FOREIGN KEY (item_id) REFERENCES items(item_id),
    FOREIGN KEY (container_id) REFERENCES containers(container_id)
);`

	createMeta = `CREATE TABLE meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);`

	createLogs = `CREATE TABLE logs (
    log_id TEXT PRIMARY KEY,
    timestamp TEXT NOT NULL,
    user_id TEXT NOT NULL DEFAULT '',
    action_type TEXT NOT NULL,
    item_id TEXT NOT NULL DEFAULT '',
    details TEXT
);`
)

// Index DDL.
const (
	idxPlacementsContainer = `CREATE INDEX idx_placements_container ON placements(container_id);`
	idxLogsTimestamp       = `CREATE INDEX idx_logs_timestamp ON logs(timestamp);`
	idxLogsItem            = `CREATE INDEX idx_logs_item ON logs(item_id);`
	idxLogsAction          = `CREATE INDEX idx_logs_action ON logs(action_type);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createContainers,
	createItems,
	createPlacements,
	createMeta,
	createLogs,
}

var indexDDL = []string{
	idxPlacementsContainer,
	idxLogsTimestamp,
	idxLogsItem,
	idxLogsAction,
}

// metaCurrentDate is the meta key holding the mission date.
const metaCurrentDate = "current_date"
