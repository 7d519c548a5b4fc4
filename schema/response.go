package schema

const responseTable = "CREATE TABLE IF NOT EXISTS `interview_responses` (" +
	"`id` VARCHAR(64) NOT NULL," +
	"`session_id` VARCHAR(64) NOT NULL," +
	"`question_id` VARCHAR(64) NOT NULL," +
	"`question_text` TEXT NOT NULL," +
	"`response_text` MEDIUMTEXT NOT NULL," +
	"`timestamp` DATETIME(3) NOT NULL," +
	"PRIMARY KEY (`id`)," +
	"KEY `idx_responses_session` (`session_id`, `timestamp`)," +
	"CONSTRAINT `fk_responses_session` FOREIGN KEY (`session_id`) REFERENCES `interview_sessions` (`id`) ON DELETE CASCADE" +
	") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4"
