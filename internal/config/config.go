// Package config loads database connection settings from an INI file.
//
// The file has one section per database alias and an optional top-level
// journal key:
//
//	journal = /var/lib/shardmigrate/journal.db
//
//	[default]
//	host = db1.internal
//	user = migrator
//	password = secret
//	dbname = app
//
//	[reporting]
//	host = localhost
//	user = reader
//	dbname = reports
package config

import (
	"database/sql"
	"fmt"
	"net"
	"sort"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	ini "gopkg.in/ini.v1"
)

const (
	// DefaultAlias is the database used when none is selected.
	DefaultAlias = "default"

	// DefaultJournal is the journal path used when the file sets none.
	DefaultJournal = "shardmigrate.db"

	// DefaultPort is the MySQL TCP port.
	DefaultPort = 3306

	// DefaultSocket is used for localhost connections without a socket key.
	DefaultSocket = "/var/run/mysqld/mysqld.sock"
)

// Database is the connection settings of one alias.
type Database struct {
	Alias    string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	Socket   string

	portSet bool
}

// Config is a loaded configuration file.
type Config struct {
	Journal   string
	databases map[string]Database
}

// Load reads an INI configuration file.
func Load(filename string) (*Config, error) {
	raw, err := ini.LoadSources(ini.LoadOptions{InsensitiveKeys: true}, filename)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("cannot load config file %q", filename))
	}
	return parse(raw)
}

// Parse reads INI configuration from memory.
func Parse(data []byte) (*Config, error) {
	raw, err := ini.LoadSources(ini.LoadOptions{InsensitiveKeys: true}, data)
	if err != nil {
		return nil, errors.Wrap(err, "cannot parse config")
	}
	return parse(raw)
}

func parse(raw *ini.File) (*Config, error) {
	cfg := &Config{
		Journal:   raw.Section("").Key("journal").MustString(DefaultJournal),
		databases: map[string]Database{},
	}

	for _, sec := range raw.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}
		db := Database{
			Alias:    sec.Name(),
			Host:     sec.Key("host").Value(),
			User:     sec.Key("user").Value(),
			Password: sec.Key("password").Value(),
			DBName:   sec.Key("dbname").Value(),
			Socket:   sec.Key("socket").Value(),
			Port:     DefaultPort,
		}

		if db.Host == "" {
			return nil, fmt.Errorf("[%s]: host cannot be empty", db.Alias)
		}
		if db.User == "" {
			return nil, fmt.Errorf("[%s]: user cannot be empty", db.Alias)
		}

		if sec.HasKey("port") {
			port, err := sec.Key("port").Int()
			if err != nil || port <= 0 || port > 65535 {
				return nil, fmt.Errorf("[%s]: invalid port %q", db.Alias, sec.Key("port").Value())
			}
			db.Port = port
			db.portSet = true
		}

		cfg.databases[db.Alias] = db
	}
	return cfg, nil
}

// Aliases returns the configured aliases in name order.
func (c *Config) Aliases() []string {
	aliases := make([]string, 0, len(c.databases))
	for a := range c.databases {
		aliases = append(aliases, a)
	}
	sort.Strings(aliases)
	return aliases
}

// Database returns the settings of an alias.
func (c *Config) Database(alias string) (Database, error) {
	if alias == "" {
		alias = DefaultAlias
	}
	db, ok := c.databases[alias]
	if !ok {
		return Database{}, fmt.Errorf("database %q is not configured", alias)
	}
	return db, nil
}

// DSN returns the go-sql-driver/mysql data source name. localhost without
// an explicit port, or any alias with a socket, connects over the unix
// socket.
func (d Database) DSN() string {
	dsnCfg := mysql.NewConfig()

	dsnCfg.User = d.User
	dsnCfg.Passwd = d.Password
	dsnCfg.DBName = d.DBName
	dsnCfg.ParseTime = true

	switch {
	case d.Socket != "":
		dsnCfg.Net = "unix"
		dsnCfg.Addr = d.Socket
	case d.Host == "localhost" && !d.portSet:
		dsnCfg.Net = "unix"
		dsnCfg.Addr = DefaultSocket
	default:
		dsnCfg.Net = "tcp"
		dsnCfg.Addr = net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
	}

	return dsnCfg.FormatDSN()
}

// Open connects to the database and verifies the connection.
func (d Database) Open() (*sql.DB, error) {
	db, err := sql.Open("mysql", d.DSN())
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("cannot open database %q", d.Alias))
	}
	// Open doesn't really open a connection.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, fmt.Sprintf("database %q is not reachable", d.Alias))
	}
	return db, nil
}
