// Package client implements a websocket client for the hub API.
//
// A Client owns one websocket connection. Commands are sent with
// strictly increasing ids and the client correlates result frames back
// to the caller, so any number of goroutines can issue commands
// concurrently. Event frames are dispatched to the handler registered
// for their subscription id.
//
// Typical use:
//
//	c, err := client.Dial(ctx, "192.168.1.50:8423", token)
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	form, err := c.StartConfigFlow(ctx, "time_date")
//	if err != nil {
//		return err
//	}
//	result, err := c.SubmitFlow(ctx, form.FlowID, input)
//
// Subscriptions stay active until Unsubscribe is called or the
// connection drops. Event handlers run on the connection's read loop
// and must not block.
package client
