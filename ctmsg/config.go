package ctmsg

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-pkgz/lgr"
	"github.com/hashicorp/go-multierror"
	"github.com/jessevdk/go-flags"
	"gopkg.in/yaml.v3"

	ctlib "github.com/ase-go/ctlib-bindings-go"
)

// Config describes a Broker. It can be read from YAML, from the
// environment, or embedded as an option group of a go-flags parser.
type Config struct {
	LogServer           bool  `yaml:"log_server" long:"log-server" env:"LOG_SERVER" description:"log server messages"`
	LogClient           bool  `yaml:"log_client" long:"log-client" env:"LOG_CLIENT" description:"log client-library messages"`
	ServerErrorSeverity int64 `yaml:"server_error_severity" long:"server-error-severity" env:"SERVER_ERROR_SEVERITY" default:"11" description:"lowest server message severity kept as last error"`
	ClientErrorSeverity int64 `yaml:"client_error_severity" long:"client-error-severity" env:"CLIENT_ERROR_SEVERITY" default:"1" description:"lowest client message severity kept as last error"`
	QueueSize           int   `yaml:"queue_size" long:"queue-size" env:"QUEUE_SIZE" default:"0" description:"envelope queue size, 0 disables the queue"`
	Workers             int   `yaml:"workers" long:"workers" env:"WORKERS" default:"1" description:"queue workers"`
}

// DefaultConfig returns the configuration NewBroker uses without options.
func DefaultConfig() Config {
	return Config{
		ServerErrorSeverity: ctlib.ServerSevInform + 1,
		ClientErrorSeverity: ctlib.SevAPIFail,
		Workers:             1,
	}
}

// LoadConfig reads a YAML configuration. Missing keys keep their
// defaults, unknown keys are an error.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("can't decode config: %w", err)
	}
	return cfg, cfg.Validate()
}

// ConfigFromEnv reads the configuration from environment variables named
// prefix_KEY, e.g. CTLIB_LOG_SERVER with prefix CTLIB.
func ConfigFromEnv(prefix string) (Config, error) {
	var cfg Config

	p := flags.NewParser(nil, flags.IgnoreUnknown)
	g, err := p.AddGroup("ctmsg", "", &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("can't describe config: %w", err)
	}
	g.EnvNamespace = prefix

	if _, err := p.ParseArgs(nil); err != nil {
		return Config{}, fmt.Errorf("can't read config from environment: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	errs := new(multierror.Error)
	if c.ServerErrorSeverity < 0 {
		errs = multierror.Append(errs, fmt.Errorf("server error severity %d is negative", c.ServerErrorSeverity))
	}
	if c.ClientErrorSeverity < 0 {
		errs = multierror.Append(errs, fmt.Errorf("client error severity %d is negative", c.ClientErrorSeverity))
	}
	if c.QueueSize < 0 {
		errs = multierror.Append(errs, fmt.Errorf("queue size %d is negative", c.QueueSize))
	}
	if c.QueueSize > 0 && c.Workers < 1 {
		errs = multierror.Append(errs, fmt.Errorf("queue needs at least one worker, got %d", c.Workers))
	}
	return errs.ErrorOrNil()
}

// NewBroker builds the configured broker. The queue is nil unless
// QueueSize is set; the caller runs it.
func (c Config) NewBroker(l lgr.L, opts ...BrokerOption) (*Broker, *Queue, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	if l == nil {
		l = lgr.Std
	}

	var q *Queue
	all := []BrokerOption{WithLogger(l), WithErrorSeverity(c.ServerErrorSeverity, c.ClientErrorSeverity)}
	if c.QueueSize > 0 {
		q = NewQueue(c.QueueSize, c.Workers)
		q.log = l
		all = append(all, WithQueue(q))
	}

	b := NewBroker(append(all, opts...)...)
	if c.LogServer || c.LogClient {
		logMsg := LogHandler(l)
		b.RegisterHandler(func(msg ctlib.Message) {
			switch msg.Class() {
			case ctlib.ServerMessageClass:
				if c.LogServer {
					logMsg(msg)
				}
			case ctlib.ClientMessageClass:
				if c.LogClient {
					logMsg(msg)
				}
			}
		})
	}
	return b, q, nil
}
