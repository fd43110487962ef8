// Package quorum composes an approval engine and a token session manager
// into the flows a chat integration needs: quorum polls with force
// overrides, credit charging and refunds, display surface migration, and
// edit-with-approval where a staged diff is committed only once a poll
// approves it.
//
// Typical use:
//
//	srv := quorum.New(quorum.WithLedger(ledger), quorum.WithSurface(surface))
//	rt := srv.Runtime()
//	poll, _ := rt.StartPoll(ctx, &quorum.PollRequest{SurfaceID: msgID, Content: "deploy?"})
//	status, _ := rt.Vote(ctx, poll.ID, userID, approval.DirectionApprove)
//	...
//	_ = rt.Shutdown(ctx)
package quorum
