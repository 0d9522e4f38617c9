package db

// SchemaSQL contains the database schema initialization SQL.
const SchemaSQL = `
    -- ==========================================================================
    -- ITEM TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS item SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS owner_id ON item TYPE string;
    DEFINE FIELD IF NOT EXISTS name ON item TYPE string;
    DEFINE FIELD IF NOT EXISTS material ON item TYPE string;
    DEFINE FIELD IF NOT EXISTS thickness ON item TYPE string;
    DEFINE FIELD IF NOT EXISTS risk_score ON item TYPE float DEFAULT 0.0
        ASSERT $value >= 0.0 AND $value <= 100.0;
    DEFINE FIELD IF NOT EXISTS status ON item TYPE string DEFAULT "normal"
        ASSERT $value IN ["normal", "waitingOptimalTime", "selfDrying", "waitingPickup", "helpDrying"];
    DEFINE FIELD IF NOT EXISTS location_id ON item TYPE option<record<location>>;
    DEFINE FIELD IF NOT EXISTS created ON item TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated ON item TYPE datetime DEFAULT time::now() VALUE time::now();

    DEFINE INDEX IF NOT EXISTS item_owner ON item FIELDS owner_id;
    DEFINE INDEX IF NOT EXISTS item_status ON item FIELDS status;

    -- ==========================================================================
    -- LOCATION TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS location SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS owner_id ON location TYPE string;
    DEFINE FIELD IF NOT EXISTS label ON location TYPE string;
    DEFINE FIELD IF NOT EXISTS prefecture ON location TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS city ON location TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS address_line ON location TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS latitude ON location TYPE option<float>;
    DEFINE FIELD IF NOT EXISTS longitude ON location TYPE option<float>;
    DEFINE FIELD IF NOT EXISTS floor_number ON location TYPE option<int>;
    DEFINE FIELD IF NOT EXISTS has_elevator ON location TYPE option<bool>;

    DEFINE INDEX IF NOT EXISTS location_owner ON location FIELDS owner_id;

    -- ==========================================================================
    -- DRYING SESSION TABLE (audit trail, never deleted)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS drying_session SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS item_id ON drying_session TYPE record<item>;
    DEFINE FIELD IF NOT EXISTS initiator_id ON drying_session TYPE string;
    DEFINE FIELD IF NOT EXISTS start_time ON drying_session TYPE option<datetime>;
    DEFINE FIELD IF NOT EXISTS end_time ON drying_session TYPE option<datetime>;
    DEFINE FIELD IF NOT EXISTS is_self_service ON drying_session TYPE bool DEFAULT true;
    DEFINE FIELD IF NOT EXISTS before_score ON drying_session TYPE float;
    DEFINE FIELD IF NOT EXISTS after_score ON drying_session TYPE option<float>;
    DEFINE FIELD IF NOT EXISTS predicted_after ON drying_session TYPE option<float>;
    DEFINE FIELD IF NOT EXISTS created ON drying_session TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS closed_at ON drying_session TYPE option<datetime>;

    DEFINE INDEX IF NOT EXISTS session_item ON drying_session FIELDS item_id;

    -- ==========================================================================
    -- SERVICE ORDER TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS service_order SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS item_id ON service_order TYPE record<item>;
    DEFINE FIELD IF NOT EXISTS requester_id ON service_order TYPE string;
    DEFINE FIELD IF NOT EXISTS assignee_id ON service_order TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS location_id ON service_order TYPE option<record<location>>;
    DEFINE FIELD IF NOT EXISTS session_id ON service_order TYPE record<drying_session>;
    DEFINE FIELD IF NOT EXISTS status ON service_order TYPE string DEFAULT "pending"
        ASSERT $value IN ["pending", "accepted", "inProgress", "completed", "cancelled"];
    DEFINE FIELD IF NOT EXISTS cost ON service_order TYPE option<int>;
    DEFINE FIELD IF NOT EXISTS is_paid ON service_order TYPE bool DEFAULT false;
    DEFINE FIELD IF NOT EXISTS created ON service_order TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated ON service_order TYPE datetime DEFAULT time::now() VALUE time::now();

    DEFINE INDEX IF NOT EXISTS order_status ON service_order FIELDS status;
    DEFINE INDEX IF NOT EXISTS order_item ON service_order FIELDS item_id;
    DEFINE INDEX IF NOT EXISTS order_requester ON service_order FIELDS requester_id;
`
