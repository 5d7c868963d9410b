package config

// ConfigBackend is the persistent layer under the environment: UserDefaults
// on macOS, a JSON file elsewhere. Ints and bools keep their native type
// where the platform supports it.
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	GetBool(key string) (val bool, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	SetBool(key string, val bool) error
	Delete(key string) error
}
