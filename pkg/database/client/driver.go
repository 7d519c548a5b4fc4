package client

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/viper"
)

type AuthMethod string

const (
	AuthMethodNone             AuthMethod = "none"
	AuthMethodUsernamePassword AuthMethod = "username_password"
)

type Database struct {
	Username        string
	Password        string
	Host            string
	Port            uint32
	Name            string
	AuthMethod      AuthMethod
	TracingEnabled  bool
	MaxOpenConns    uint32
	MaxIdleConns    uint32
	ConnMaxIdleTime uint32 // minutes
	ConnMaxLifeTime uint32 // minutes
}

func ReadConfig() *Database {
	// Enable environment variable usage
	viper.BindEnv("db.user", "DB_USER")
	viper.BindEnv("db.password", "DB_PASSWORD")
	viper.BindEnv("db.host", "DB_HOST")
	viper.BindEnv("db.port", "DB_PORT")
	viper.BindEnv("db.name", "DB_NAME")
	viper.BindEnv("db.auth_method", "DB_AUTH_METHOD")

	return &Database{
		Username:        viper.GetString("db.user"),
		Password:        viper.GetString("db.password"),
		Host:            viper.GetString("db.host"),
		Port:            viper.GetUint32("db.port"),
		Name:            viper.GetString("db.name"),
		AuthMethod:      mapAuthMethod(viper.GetString("db.auth_method")),
		TracingEnabled:  viper.GetBool("db.tracing_enabled"),
		MaxOpenConns:    viper.GetUint32("db.max_open_conns"),
		MaxIdleConns:    viper.GetUint32("db.max_idle_conns"),
		ConnMaxIdleTime: viper.GetUint32("db.conn_max_idle_time"),
		ConnMaxLifeTime: viper.GetUint32("db.conn_max_life_time"),
	}
}

func mapAuthMethod(authMethod string) AuthMethod {
	switch authMethod {
	case "none":
		return AuthMethodNone
	default:
		return AuthMethodUsernamePassword
	}
}

// NewDriver returns a driver that builds its DSN from config on every new connection.
func NewDriver(config *Database) driver.Driver {
	return &Driver{config: config}
}

type Driver struct {
	drv    mysql.MySQLDriver
	config *Database
}

func (d *Driver) Open(_ string) (driver.Conn, error) {
	return d.drv.Open(FormatDSN(d.config))
}

func FormatDSN(config *Database) string {
	mysqlConfig := mysql.NewConfig()
	mysqlConfig.Net = "tcp"
	mysqlConfig.Addr = fmt.Sprintf("%s:%d", config.Host, config.Port)
	mysqlConfig.DBName = config.Name
	mysqlConfig.AllowNativePasswords = true
	mysqlConfig.ParseTime = true
	mysqlConfig.Loc = time.UTC
	mysqlConfig.User = config.Username
	if config.AuthMethod == AuthMethodUsernamePassword {
		mysqlConfig.Passwd = config.Password
	}
	return mysqlConfig.FormatDSN()
}
