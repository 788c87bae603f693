package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflow_definitions (
				id VARCHAR(64) PRIMARY KEY,
				tenant_id VARCHAR(255) NOT NULL,
				workflow_key VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL DEFAULT '',
				version INTEGER NOT NULL CHECK (version >= 1),
				spec JSONB NOT NULL,
				active BOOLEAN NOT NULL DEFAULT TRUE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				UNIQUE (tenant_id, workflow_key)
			);

			CREATE INDEX idx_workflow_definitions_tenant ON workflow_definitions(tenant_id, created_at);

			CREATE TABLE workflow_instances (
				id VARCHAR(64) PRIMARY KEY,
				tenant_id VARCHAR(255) NOT NULL,
				definition_id VARCHAR(64) NOT NULL REFERENCES workflow_definitions(id),
				entity_type VARCHAR(255) NOT NULL,
				entity_id VARCHAR(255) NOT NULL,
				state VARCHAR(255) NOT NULL,
				context JSONB NOT NULL DEFAULT '{}',
				version INTEGER NOT NULL DEFAULT 1,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflow_instances_state ON workflow_instances(tenant_id, definition_id, state);
			CREATE INDEX idx_workflow_instances_entity ON workflow_instances(tenant_id, entity_type, entity_id);
		`,
		2: `
			-- Append-only transition log; seq gives a total order per instance
			CREATE TABLE workflow_transitions (
				seq BIGSERIAL PRIMARY KEY,
				id VARCHAR(64) NOT NULL UNIQUE,
				instance_id VARCHAR(64) NOT NULL REFERENCES workflow_instances(id),
				from_state VARCHAR(255) NOT NULL,
				to_state VARCHAR(255) NOT NULL,
				trigger_name VARCHAR(255) NOT NULL,
				actor_id VARCHAR(255),
				payload JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflow_transitions_instance ON workflow_transitions(instance_id, seq);
		`,
	}
}
