package schema

const evaluationTable = "CREATE TABLE IF NOT EXISTS `evaluation_results` (" +
	"`id` VARCHAR(64) NOT NULL," +
	"`response_id` VARCHAR(64) NOT NULL," +
	"`session_id` VARCHAR(64) NOT NULL," +
	"`overall_score` DOUBLE NOT NULL," +
	"`parameter_scores` JSON NOT NULL," +
	"`analysis` JSON NOT NULL," +
	"`created_at` DATETIME(3) NOT NULL," +
	"PRIMARY KEY (`id`)," +
	"UNIQUE KEY `uk_evaluations_session` (`session_id`)," +
	"KEY `idx_evaluations_response` (`response_id`)" +
	") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4"
