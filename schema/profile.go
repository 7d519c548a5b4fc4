package schema

const profileTable = "CREATE TABLE IF NOT EXISTS `profiles` (" +
	"`id` VARCHAR(64) NOT NULL," +
	"`email` VARCHAR(255) NOT NULL," +
	"`name` VARCHAR(255) NOT NULL DEFAULT ''," +
	"`role` VARCHAR(32) NOT NULL," +
	"`company_name` VARCHAR(255) NOT NULL DEFAULT ''," +
	"`created_at` DATETIME(3) NOT NULL," +
	"PRIMARY KEY (`id`)," +
	"UNIQUE KEY `uk_profiles_email` (`email`)" +
	") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4"
