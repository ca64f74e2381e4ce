package syncer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/pykids/progress-hub/internal/domain/curriculum"
)

func TestZZDiagDropReason(t *testing.T) {
	remote := &fakeRemote{}
	remote.setErr(errors.New("remote down"))
	e, _, drops, _ := newTestEngine(t, remote, func(c *Config) { c.MaxRetries = 3 })
	ctx := context.Background()

	if err := e.SaveProgress(ctx, mustUpdate(t, "m1", "t1", 10, curriculum.TypeLesson)); err != nil {
		t.Fatal(err)
	}
	if err := e.SetOnline(ctx, true); err != nil {
		t.Fatal(err)
	}
	r1, err := e.Drain(ctx)
	fmt.Printf("DIAG drain2: %+v err=%v\n", r1, err)
	r2, err := e.Drain(ctx)
	fmt.Printf("DIAG drain3: %+v err=%v\n", r2, err)
	recent, err := drops.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range recent {
		fmt.Printf("DIAG entry %d: %+v\n", i, r)
		fmt.Printf("DIAG reason=%q retry=%d\n", r.Reason, r.RetryCount)
	}
}
