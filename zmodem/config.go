package zmodem

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the tunables spec §6 calls out, plus the escape-control bit
// the session machine consults and the overwrite policy and destination
// directory the embedder's file callbacks consult. Grounded
// on the teacher's zmodem.go option-struct shape, adapted to the YAML
// config file the cmd/zmrx CLI loads (drop-in alongside pflag overrides).
type Config struct {
	RecvBufSize  int           `yaml:"recv_buf_size"`
	PktBufSize   int           `yaml:"pkt_buf_size"`
	SendBufSize  int           `yaml:"send_buf_size"`
	RespTimeout  time.Duration `yaml:"resp_timeout"`
	ConnTimeout  time.Duration `yaml:"conn_timeout"`
	SerialNumber int           `yaml:"serial_number"`
	MaxErrors    int           `yaml:"max_errors"`

	// EscapeControl makes the receiver advertise ESCALL in every ZRINIT,
	// asking the sender to ZDLE-escape every control byte (the receiver's
	// side of TESCCTL), regardless of what the far end requests in ZSINIT.
	EscapeControl bool `yaml:"escape_control"`

	// Overwrite lets an existing file at the destination path be replaced.
	// The session machine does not read it; cmd/zmrx's OnFileCreate does,
	// and refuses an existing file when Overwrite is false.
	Overwrite bool `yaml:"overwrite"`

	// Protect refuses an existing file at the destination path
	// unconditionally. Like Overwrite it is read by cmd/zmrx's OnFileCreate,
	// not by the session machine. Mutually exclusive with Overwrite; the
	// CLI layer rejects both set.
	Protect bool `yaml:"protect"`

	// DestDir is the directory received files are written under.
	DestDir string `yaml:"dest_dir"`
}

// DefaultConfig returns the tunables from spec §6.
func DefaultConfig() Config {
	return Config{
		RecvBufSize:  DefaultRecvBufSize,
		PktBufSize:   DefaultPktBufSize,
		SendBufSize:  DefaultSendBufSize,
		RespTimeout:  DefaultRespTimeout * time.Second,
		ConnTimeout:  DefaultConnTimeout * time.Second,
		SerialNumber: DefaultSerialNumber,
		MaxErrors:    DefaultMaxErrors,
		DestDir:      ".",
	}
}

// LoadConfigFile reads a YAML config file, starting from DefaultConfig and
// overriding whatever keys are present.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
