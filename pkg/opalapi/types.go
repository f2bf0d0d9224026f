package opalapi

// AppTypeCustom is the panel's application type for a custom app
// listening on an assigned port.
const AppTypeCustom = "CUS"

// OSUser is a shell account on a panel server.
type OSUser struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Server string `json:"server"`
	State  string `json:"state"`
	Ready  bool   `json:"ready"`

	// DefaultPassword is only present in create responses.
	DefaultPassword string `json:"default_password,omitempty"`
}

// Server is a panel web server.
type Server struct {
	ID       string `json:"id"`
	Hostname string `json:"hostname"`
}

// App is a registered application slot with an assigned port.
type App struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Server     string `json:"server"`
	OSUser     string `json:"osuser"`
	OSUserName string `json:"osuser_name"`
	Type       string `json:"type"`
	Port       int    `json:"port"`
	State      string `json:"state"`
	Ready      bool   `json:"ready"`
}

// Database is a relational database instance (postgres or mariadb).
type Database struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Server  string `json:"server"`
	Charset string `json:"charset"`
	State   string `json:"state"`
	Ready   bool   `json:"ready"`

	// DBUser and DBUserID identify the database user the panel creates
	// alongside the database; only present in create responses.
	DBUser   string `json:"dbuser,omitempty"`
	DBUserID string `json:"dbuserid,omitempty"`

	DBUsersReadWrite []string `json:"dbusers_readwrite,omitempty"`
	DBUsersReadOnly  []string `json:"dbusers_readonly,omitempty"`
}

// DBUser is a database account owned by a panel account.
type DBUser struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Server   string `json:"server"`
	State    string `json:"state"`
	Ready    bool   `json:"ready"`
	External bool   `json:"external"`
}

// serverList is the envelope the panel returns for server listings.
type serverList struct {
	WebServers  []Server `json:"web_servers"`
	IMAPServers []Server `json:"imap_servers"`
	SMTPServers []Server `json:"smtp_servers"`
}

// databaseList is the envelope for database listings.
type databaseList struct {
	PostgresDBs []Database `json:"psqldbs"`
	MariaDBs    []Database `json:"mariadbs"`
}
