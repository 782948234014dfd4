package domain

// DefaultPort — порт PostgreSQL по умолчанию.
const DefaultPort = 5432

// ConnectionCredentials — параметры подключения к БД, введённые пользователем.
//
// Живут только до успешной проверки подключения, после чего
// backend выдаёт Connection. Пароль дальше Connect не уходит.
type ConnectionCredentials struct {
	Host     string `json:"host" validate:"notblank"`
	Port     int    `json:"port" validate:"min=1,max=65535"`
	Database string `json:"database" validate:"notblank"`
	Username string `json:"username" validate:"notblank"`
	Password string `json:"password" validate:"notblank"`
}

// Connection — проверенное подключение, зарегистрированное на backend.
type Connection struct {
	// ID — непрозрачный идентификатор подключения (connection_id).
	ID string `json:"id"`

	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	Username string `json:"username"`

	// Connected — true после успешного test-connection.
	Connected bool `json:"is_connected"`
}

// NewConnection создаёт Connection из credentials и ID, выданного backend.
func NewConnection(id string, creds ConnectionCredentials) *Connection {
	return &Connection{
		ID:        id,
		Host:      creds.Host,
		Port:      creds.Port,
		Database:  creds.Database,
		Username:  creds.Username,
		Connected: true,
	}
}
