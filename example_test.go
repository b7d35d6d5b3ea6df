package reactor_test

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/cazwell/reactor"
)

// Example demonstrates registering a one-shot readable fd event and
// running a single loop pass that dispatches the read.
func Example() {
	r, err := reactor.Create()
	if err != nil {
		panic(err)
	}
	defer r.Destroy()

	rp, wp, err := os.Pipe()
	if err != nil {
		panic(err)
	}
	defer rp.Close()

	ev := &reactor.Event{}
	r.SetFDEvent(ev, int(rp.Fd()), reactor.Read, func(fd int, mask reactor.Mask, arg any) {
		buf := make([]byte, 5)
		n, _ := unix.Read(fd, buf)
		fmt.Printf("read %q\n", buf[:n])
	}, nil)
	if err := r.BindToReactor(ev); err != nil {
		panic(err)
	}
	if err := r.Add(ev, nil); err != nil {
		panic(err)
	}

	wp.Write([]byte("hello"))
	wp.Close()

	if _, err := r.Loop(reactor.LoopOnce); err != nil {
		panic(err)
	}

	// Output: read "hello"
}
