// Package redis connects to the optional redis instance that receives
// paywall analytics events as a stream and backs the /readyz probe.
//
//	cfg := config.MustLoad[redis.Config]()
//	if cfg.Enabled() {
//		client, err := redis.Connect(ctx, cfg)
//		...
//		probe := redis.Healthcheck(client)
//	}
package redis
