package schema

// Questions and parameters are stored as JSON because an interview is immutable once published.
const interviewTable = "CREATE TABLE IF NOT EXISTS `interviews` (" +
	"`id` VARCHAR(64) NOT NULL," +
	"`recruiter_id` VARCHAR(64) NOT NULL," +
	"`company_name` VARCHAR(255) NOT NULL," +
	"`job_role` VARCHAR(255) NOT NULL," +
	"`title` VARCHAR(255) NOT NULL," +
	"`access_code` VARCHAR(16) NOT NULL," +
	"`questions` JSON NOT NULL," +
	"`parameters` JSON NOT NULL," +
	"`status` VARCHAR(16) NOT NULL," +
	"`created_at` DATETIME(3) NOT NULL," +
	"PRIMARY KEY (`id`)," +
	"UNIQUE KEY `uk_interviews_access_code` (`access_code`)," +
	"KEY `idx_interviews_recruiter` (`recruiter_id`, `created_at`)" +
	") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4"
