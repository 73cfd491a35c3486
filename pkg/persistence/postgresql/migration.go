package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Flow definitions; the graph is stored whole and replaced whole
			CREATE TABLE flows (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				channel VARCHAR(20) NOT NULL CHECK (channel IN ('email', 'sms')),
				is_active BOOLEAN NOT NULL DEFAULT FALSE,
				is_draft BOOLEAN NOT NULL DEFAULT TRUE,
				nodes JSONB NOT NULL DEFAULT '[]',
				edges JSONB NOT NULL DEFAULT '[]',
				total_executions BIGINT NOT NULL DEFAULT 0,
				success_count BIGINT NOT NULL DEFAULT 0,
				failure_count BIGINT NOT NULL DEFAULT 0,
				last_executed_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				activated_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_flows_runnable ON flows(is_active, is_draft);

			-- Append-only execution log
			CREATE TABLE flow_execution_logs (
				id VARCHAR(255) PRIMARY KEY,
				flow_id VARCHAR(255) NOT NULL,
				node_id VARCHAR(255),
				subject_key VARCHAR(255) NOT NULL,
				event_type VARCHAR(255) NOT NULL,
				status VARCHAR(20) NOT NULL CHECK (status IN ('success', 'failure')),
				executed_at TIMESTAMP WITH TIME ZONE NOT NULL,
				error_message TEXT,
				provider_message_id VARCHAR(255)
			);

			CREATE INDEX idx_flow_execution_logs_flow ON flow_execution_logs(flow_id, executed_at DESC);
			CREATE INDEX idx_flow_execution_logs_suppression
				ON flow_execution_logs(flow_id, subject_key, event_type, executed_at)
				WHERE status = 'success';

			-- Traversals parked on long delays
			CREATE TABLE flow_checkpoints (
				id VARCHAR(255) PRIMARY KEY,
				flow_id VARCHAR(255) NOT NULL,
				node_id VARCHAR(255) NOT NULL,
				event_type VARCHAR(255) NOT NULL,
				context JSONB NOT NULL DEFAULT '{}',
				visited JSONB NOT NULL DEFAULT '[]',
				resume_at TIMESTAMP WITH TIME ZONE NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_flow_checkpoints_resume_at ON flow_checkpoints(resume_at);
		`,
		2: `
			-- Directory, promotion and template tables owned by the admin platform
			CREATE TABLE IF NOT EXISTS customers (
				id VARCHAR(255) PRIMARY KEY,
				email VARCHAR(255),
				phone VARCHAR(50),
				registered_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE TABLE IF NOT EXISTS orders (
				id VARCHAR(255) PRIMARY KEY,
				customer_id VARCHAR(255) REFERENCES customers(id),
				total NUMERIC(12, 2) NOT NULL DEFAULT 0,
				item_count INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_orders_customer ON orders(customer_id);

			CREATE TABLE IF NOT EXISTS customer_tags (
				subject_key VARCHAR(255) NOT NULL,
				tag VARCHAR(255) NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (subject_key, tag)
			);

			CREATE TABLE IF NOT EXISTS discount_codes (
				code VARCHAR(32) PRIMARY KEY,
				subject_key VARCHAR(255) NOT NULL,
				percent NUMERIC(5, 2) NOT NULL,
				expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE TABLE IF NOT EXISTS message_templates (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL DEFAULT '',
				channel VARCHAR(20) NOT NULL CHECK (channel IN ('email', 'sms')),
				subject TEXT NOT NULL DEFAULT '',
				body TEXT NOT NULL
			);
		`,
	}
}
