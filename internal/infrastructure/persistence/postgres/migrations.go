// Package postgres implements the PostgreSQL persistence layer for the
// federated campus moderation network: TelegramUser, TelegramGroup,
// GroupMembership, TelegramBot, BaseRole (+ catalog degrees/departments/
// courses), BlacklistedUser, BotWhitelist, EventLog, and ScheduledTask.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CORE IDENTITY — users, groups, memberships, bots
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS telegram_users (
    id BIGINT PRIMARY KEY,
    first_name VARCHAR(255) NOT NULL,
    last_name VARCHAR(255) NOT NULL DEFAULT '',
    username VARCHAR(64) NOT NULL DEFAULT '',
    language VARCHAR(8) NOT NULL DEFAULT '',
    reputation INTEGER NOT NULL DEFAULT 0,
    warn_count INTEGER NOT NULL DEFAULT 0,
    banned BOOLEAN NOT NULL DEFAULT FALSE,
    last_seen TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_telegram_users_banned ON telegram_users(banned) WHERE banned;
CREATE INDEX IF NOT EXISTS idx_telegram_users_username ON telegram_users(username) WHERE username <> '';

CREATE TABLE IF NOT EXISTS telegram_bots (
    token VARCHAR(128) PRIMARY KEY,
    username VARCHAR(64) NOT NULL,
    notes TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS telegram_groups (
    id BIGINT PRIMARY KEY,
    title VARCHAR(255) NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    invite_link VARCHAR(255) NOT NULL DEFAULT '',
    language VARCHAR(8) NOT NULL DEFAULT 'en',
    welcome_template TEXT NOT NULL DEFAULT '{greetings}! Welcome to {title}.',
    owner_id BIGINT REFERENCES telegram_users(id) ON DELETE SET NULL,
    bot_token VARCHAR(128) NOT NULL REFERENCES telegram_bots(token) ON DELETE CASCADE,
    ignore_admin_tagging BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_telegram_groups_bot_token ON telegram_groups(bot_token);

CREATE TABLE IF NOT EXISTS bot_whitelist (
    username VARCHAR(64) PRIMARY KEY,
    whitelisted_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS group_memberships (
    user_id BIGINT NOT NULL REFERENCES telegram_users(id) ON DELETE CASCADE,
    group_id BIGINT NOT NULL REFERENCES telegram_groups(id) ON DELETE CASCADE,
    status VARCHAR(20) NOT NULL DEFAULT 'member',
    last_seen TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    messages_count BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_id, group_id)
);

CREATE INDEX IF NOT EXISTS idx_group_memberships_group ON group_memberships(group_id);
CREATE INDEX IF NOT EXISTS idx_group_memberships_user ON group_memberships(user_id);
CREATE INDEX IF NOT EXISTS idx_group_memberships_active ON group_memberships(group_id) WHERE status IN ('creator','administrator','member','restricted');
`

const migration001Down = `
DROP TABLE IF EXISTS group_memberships;
DROP TABLE IF EXISTS bot_whitelist;
DROP TABLE IF EXISTS telegram_groups;
DROP TABLE IF EXISTS telegram_bots;
DROP TABLE IF EXISTS telegram_users;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CATALOG — departments, degrees, courses (read-only joins)
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS departments (
    id SERIAL PRIMARY KEY,
    name VARCHAR(255) NOT NULL
);

CREATE TABLE IF NOT EXISTS degrees (
    id SERIAL PRIMARY KEY,
    department_id INTEGER NOT NULL REFERENCES departments(id) ON DELETE CASCADE,
    name VARCHAR(255) NOT NULL,
    group_id BIGINT REFERENCES telegram_groups(id) ON DELETE SET NULL
);

CREATE INDEX IF NOT EXISTS idx_degrees_group ON degrees(group_id) WHERE group_id IS NOT NULL;

CREATE TABLE IF NOT EXISTS courses (
    id SERIAL PRIMARY KEY,
    degree_id INTEGER NOT NULL REFERENCES degrees(id) ON DELETE CASCADE,
    name VARCHAR(255) NOT NULL,
    group_id BIGINT REFERENCES telegram_groups(id) ON DELETE SET NULL
);

CREATE INDEX IF NOT EXISTS idx_courses_group ON courses(group_id) WHERE group_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_courses_degree ON courses(degree_id);
`

const migration002Down = `
DROP TABLE IF EXISTS courses;
DROP TABLE IF EXISTS degrees;
DROP TABLE IF EXISTS departments;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: ROLES — polymorphic BaseRole, one table + discriminator
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS base_roles (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id BIGINT NOT NULL REFERENCES telegram_users(id) ON DELETE CASCADE,
    django_user VARCHAR(255) NOT NULL DEFAULT '',
    variant VARCHAR(32) NOT NULL,
    all_groups BOOLEAN NOT NULL DEFAULT FALSE,
    extra_groups BOOLEAN NOT NULL DEFAULT FALSE,
    degree_ids INTEGER[] NOT NULL DEFAULT '{}',
    custom_title VARCHAR(64) NOT NULL DEFAULT '',
    moderation_overrides JSONB NOT NULL DEFAULT '{}'::jsonb,
    telegram_right_overrides JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_base_roles_user ON base_roles(user_id);
CREATE INDEX IF NOT EXISTS idx_base_roles_degree_ids ON base_roles USING GIN(degree_ids);
`

const migration003Down = `
DROP TABLE IF EXISTS base_roles;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: MODERATION — blacklist and the append-only event log
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
CREATE TABLE IF NOT EXISTS blacklisted_users (
    user_id BIGINT PRIMARY KEY,
    source VARCHAR(20) NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_blacklisted_users_source ON blacklisted_users(source);

CREATE TABLE IF NOT EXISTS event_logs (
    id BIGSERIAL PRIMARY KEY,
    kind SMALLINT NOT NULL,
    chat_id BIGINT,
    target_id BIGINT,
    issuer_id BIGINT,
    bot_token VARCHAR(128) NOT NULL DEFAULT '',
    reason TEXT NOT NULL DEFAULT '',
    message_text TEXT NOT NULL DEFAULT '',
    message_deleted BOOLEAN NOT NULL DEFAULT FALSE,
    until_date TIMESTAMPTZ,
    audit_message_id INTEGER NOT NULL DEFAULT 0,
    timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_event_logs_kind ON event_logs(kind);
CREATE INDEX IF NOT EXISTS idx_event_logs_chat ON event_logs(chat_id) WHERE chat_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_event_logs_target ON event_logs(target_id) WHERE target_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_event_logs_timestamp ON event_logs(timestamp DESC);
`

const migration004Down = `
DROP TABLE IF EXISTS event_logs;
DROP TABLE IF EXISTS blacklisted_users;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 005: SCHEDULER — durable claim/execute/ack task table
// ══════════════════════════════════════════════════════════════════════════════

const migration005Up = `
CREATE TABLE IF NOT EXISTS scheduled_tasks (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(64) NOT NULL,
    payload JSONB NOT NULL DEFAULT '{}'::jsonb,
    not_before TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    recurrence_interval_seconds BIGINT NOT NULL DEFAULT 0,
    recurrence_once BOOLEAN NOT NULL DEFAULT TRUE,
    claimed_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_scheduled_tasks_due ON scheduled_tasks(not_before) WHERE claimed_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_scheduled_tasks_name ON scheduled_tasks(name);
`

const migration005Down = `
DROP TABLE IF EXISTS scheduled_tasks;
`
