package internal

import (
	"fmt"
	"time"
)

type Config struct {
	Host     string `env:"HOST,default=0.0.0.0"`
	Port     int    `env:"PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=info"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`

	// Empty NatsURL selects the in-process bus; suited to single-node
	// deployments and tests.
	NatsURL string `env:"NATS_URL"`

	AuthSecret        string        `env:"AUTH_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`

	MaxContentLength     int           `env:"MAX_CONTENT_LENGTH,default=2000"`
	BufferSize           int           `env:"BUFFER_SIZE,default=256"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=256"`
	MaxFrameSize         int64         `env:"MAX_FRAME_SIZE,default=65536"`
	HistoryLimit         int           `env:"HISTORY_LIMIT,default=50"`
	LimitMessages        *int          `env:"LIMIT_MESSAGES"`
	AutoJoinOnAttach     bool          `env:"AUTO_JOIN_ON_ATTACH,default=true"`
	CharReplacement      string        `env:"CHARACTER_REPLACEMENT,default=*"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,default=5s"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=30s"`

	DebugPort int `env:"DEBUG_PORT,default=8081"`
}

func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
