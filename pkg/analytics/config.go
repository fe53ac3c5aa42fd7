package analytics

// Config selects where analytics events go besides the log.
type Config struct {
	Stream           string `env:"ANALYTICS_STREAM" envDefault:"paywall:events"`
	StreamMaxLen     int64  `env:"ANALYTICS_STREAM_MAXLEN" envDefault:"100000"`
	MetricsNamespace string `env:"ANALYTICS_METRICS_NAMESPACE" envDefault:"paywall"`
}
