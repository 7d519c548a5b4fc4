package schema

const sessionTable = "CREATE TABLE IF NOT EXISTS `interview_sessions` (" +
	"`id` VARCHAR(64) NOT NULL," +
	"`interview_id` VARCHAR(64) NOT NULL," +
	"`interview_title` VARCHAR(255) NOT NULL DEFAULT ''," +
	"`company_name` VARCHAR(255) NOT NULL DEFAULT ''," +
	"`candidate_id` VARCHAR(64) NOT NULL," +
	"`candidate_name` VARCHAR(255) NOT NULL DEFAULT ''," +
	"`candidate_email` VARCHAR(255) NOT NULL DEFAULT ''," +
	"`status` VARCHAR(32) NOT NULL," +
	"`decision` VARCHAR(16) NOT NULL DEFAULT 'pending'," +
	"`started_at` DATETIME(3) NOT NULL," +
	"`completed_at` DATETIME(3) NULL," +
	"`termination_reason` TEXT NULL," +
	"PRIMARY KEY (`id`)," +
	"UNIQUE KEY `uk_sessions_candidate_interview` (`candidate_id`, `interview_id`)," +
	"KEY `idx_sessions_interview` (`interview_id`, `started_at`)," +
	"KEY `idx_sessions_status` (`status`, `started_at`)" +
	") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4"
