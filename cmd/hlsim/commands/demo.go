package commands

import (
	"github.com/liangcheng-yu/hyperlight/pkg/guest"
)

// demoMain registers the sample guest functions the simulator ships with.
func demoMain(rt *guest.Runtime) error {
	if err := rt.RegisterTyped("Echo", func(s string) string {
		return s
	}); err != nil {
		return err
	}

	if err := rt.RegisterTyped("Add", func(a, b int32) int32 {
		return a + b
	}); err != nil {
		return err
	}

	if err := rt.RegisterTyped("Sum", func(buf []byte, length int32) int64 {
		var total int64
		for _, b := range buf[:length] {
			total += int64(b)
		}
		return total
	}); err != nil {
		return err
	}

	// PrintOutput round-trips through the host console function.
	if err := rt.RegisterTyped("PrintOutput", func(msg string) (int32, error) {
		return rt.Print(msg)
	}); err != nil {
		return err
	}

	if err := rt.RegisterTyped("LogMessage", func(msg string) error {
		rt.Logger().Info(msg)
		return nil
	}); err != nil {
		return err
	}

	return rt.RegisterTyped("TickCount", func() (int64, error) {
		return rt.TickCount()
	})
}
