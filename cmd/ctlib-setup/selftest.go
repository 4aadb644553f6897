// Copyright ctlib-bindings-go Contributors (https://github.com/ase-go/ctlib-bindings-go)
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/syncs"
	"github.com/hashicorp/go-multierror"

	ctlib "github.com/ase-go/ctlib-bindings-go"
	"github.com/ase-go/ctlib-bindings-go/ctlibtest"
	"github.com/ase-go/ctlib-bindings-go/ctmsg"
)

// selfTestConnections is the number of connections emitting client
// messages at the same time.
const selfTestConnections = 8

// SelfTest links a broker built from cfg, drives the bridge through the
// simulated library and reports every check to out. It links the broker
// process-wide for its duration.
func SelfTest(cfg ctmsg.Config, out io.Writer) error {
	broker, q, err := cfg.NewBroker(lgr.Std)
	if err != nil {
		return fmt.Errorf("can't build broker: %w", err)
	}
	if q != nil {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() { _ = q.Run(ctx) }()
		defer q.Close()
	}

	rec := &ctmsg.Recorder{}
	broker.RegisterHandler(rec.HandleMessage)

	ctlib.Link(broker)
	defer ctlib.Unlink()

	lib := ctlibtest.New()
	b := ctlib.New(lib)

	c, err := b.OpenContext()
	if err != nil {
		return err
	}
	defer func() {
		if err := b.CloseContext(c); err != nil {
			lgr.Printf("[WARN] %v", err)
		}
	}()

	if err := b.RegisterCallbacks(c); err != nil {
		return err
	}

	con, err := b.AllocateConnection(c).Unwrap()
	if err != nil {
		return err
	}

	errs := new(multierror.Error)
	check := func(name string, ok bool, format string, args ...any) bool {
		if ok {
			fmt.Fprintf(out, "%s %s\n", color.New(color.FgGreen).Sprint("PASS"), name)
			return true
		}
		reason := fmt.Sprintf(format, args...)
		fmt.Fprintf(out, "%s %s: %s\n", color.New(color.FgHiRed).Sprint("FAIL"), name, reason)
		errs = multierror.Append(errs, fmt.Errorf("%s: %s", name, reason))
		return false
	}

	status := lib.EmitServerMessage(c, con, ctlibtest.ServerMsg{MsgNumber: 207, Severity: 10, Text: "deadlock"})
	check("server message status", status == ctlib.Succeed, "got %v", status)
	msgs := rec.Messages()
	if check("server message delivered", len(msgs) == 1, "got %d messages", len(msgs)) {
		srv, ok := msgs[0].(ctlib.ServerMessage)
		check("server message content",
			ok && srv.MsgNumber == 207 && srv.Severity == 10 && srv.Text == "deadlock",
			"got %+v", msgs[0])
	}

	rec.Reset()
	number := ctlibtest.ClientMsgNumber(4, 1, ctlib.SevCommFail, 44)
	status = lib.EmitClientMessage(c, con, ctlibtest.ClientMsg{Severity: ctlib.SevCommFail, MsgNumber: number, Text: "read from the server has timed out"})
	check("client message status", status == ctlib.Succeed, "got %v", status)
	msgs = rec.Messages()
	if check("client message delivered", len(msgs) == 1, "got %d messages", len(msgs)) {
		clt, ok := msgs[0].(ctlib.ClientMessage)
		check("client message content", ok && clt.Layer() == 4 && clt.Number() == 44, "got %+v", msgs[0])
	}
	_, ok := broker.LastError(con)
	check("client error kept", ok, "no last error for %v", con)

	rec.Reset()
	var delivered atomic.Int64
	wg := syncs.NewErrSizedGroup(selfTestConnections)
	for i := 0; i < selfTestConnections; i++ {
		wg.Go(func() error {
			cn, err := b.AllocateConnection(c).Unwrap()
			if err != nil {
				return err
			}
			defer b.DropConnection(cn)
			if st := lib.EmitServerMessage(c, cn, ctlibtest.ServerMsg{MsgNumber: int64(5701 + i), Severity: 10, Text: "changed database context"}); st != ctlib.Succeed {
				return fmt.Errorf("connection %d: status %v", i, st)
			}
			delivered.Add(1)
			return nil
		})
	}
	err = wg.Wait()
	check("concurrent connections", err == nil && delivered.Load() == selfTestConnections && rec.Len() == selfTestConnections,
		"delivered %d of %d, err %v", delivered.Load(), selfTestConnections, err)

	st := broker.Stats()
	fmt.Fprintf(out, "server %d, client %d, dropped %d, panicked %d\n", st.Server, st.Client, st.Dropped, st.Panicked)
	return errs.ErrorOrNil()
}
