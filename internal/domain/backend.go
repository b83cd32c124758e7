package domain

// BackendDriver names the persistence backend that stores editor documents.
type BackendDriver string

const (
	BackendSQLite   BackendDriver = "sqlite"
	BackendPostgres BackendDriver = "postgres"
	BackendMySQL    BackendDriver = "mysql"
	BackendMongoDB  BackendDriver = "mongodb"
	BackendFile     BackendDriver = "file"
	BackendMemory   BackendDriver = "memory"
)

// BackendConfig holds what a backend needs to connect. The password is kept
// in the secret store, never here.
type BackendConfig struct {
	Driver     BackendDriver     `toml:"driver" json:"driver"`
	Path       string            `toml:"path" json:"path"` // sqlite database file
	Host       string            `toml:"host" json:"host"` // hostname or full mongodb:// URI
	Port       int               `toml:"port" json:"port"`
	Database   string            `toml:"database" json:"database"`
	Username   string            `toml:"username" json:"username"`
	SSLMode    string            `toml:"ssl_mode" json:"sslMode"`
	Collection string            `toml:"collection" json:"collection"` // mongodb only
	Dir        string            `toml:"dir" json:"dir"`               // file backend root
	Extra      map[string]string `toml:"extra" json:"extra"`           // driver-specific URI options
}

// SecretKey is the secret store key holding the backend password.
func (c BackendConfig) SecretKey() string {
	return "pageeditor:" + string(c.Driver) + ":" + c.Username + "@" + c.Host
}
