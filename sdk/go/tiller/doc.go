// Package tiller is the in-process SDK for the governance pipeline. Agent
// builders wrap their tool functions once; every call is then gated
// through safety, economic, and irreversibility checks, recorded to the
// ledger, and held for a human whenever policy demands one.
//
// Minimal usage:
//
//	client, err := tiller.New(tiller.WithIdentity("tenant-a"))
//	if err != nil { ... }
//
//	send := client.Wrap(func(ctx context.Context, a tiller.Action) (any, error) {
//		return doSend(ctx, a)
//	})
//
//	_, err = send(ctx, tiller.Action{
//		Agent:  "outreach-1",
//		Domain: "sales",
//		Type:   "campaign.send",
//		Impact: "irreversible",
//	})
//	var blocked *tiller.BlockedError
//	if errors.As(err, &blocked) {
//		// surface blocked.ChargeID so a human can approve it
//	}
package tiller
