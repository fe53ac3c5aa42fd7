// Package revenuecat is a small client for the subscription backend's v1 REST API.
//
// It covers the three calls a paywall needs:
//
//   - GET  /subscribers/{app_user_id}/offerings - current offerings and localized prices
//   - POST /receipts                            - submit a purchase token for a product
//   - GET  /subscribers/{app_user_id}           - subscriber entitlements (restore)
//
// Every request carries the bearer API key given in Config. Non-2xx responses
// are returned as *APIError; transport failures wrap ErrTransport. The client
// never retries.
//
// # Usage
//
//	var cfg revenuecat.Config
//	config.MustLoad(&cfg)
//
//	client, err := revenuecat.New(cfg)
//	if err != nil {
//		return err
//	}
//
//	sub, err := client.Subscriber(ctx, appUserID)
//	if err != nil {
//		return err
//	}
//	if ent, ok := sub.Subscriber.Entitlement("premium"); ok && ent.Active(time.Now()) {
//		// premium access
//	}
package revenuecat
