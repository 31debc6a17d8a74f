package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-fprint/fphal/pkg/emulated"
	"github.com/go-fprint/fphal/pkg/fphal"
	"github.com/go-fprint/fphal/pkg/fptypes"
	"github.com/go-fprint/fphal/pkg/hwauth"
	"github.com/go-fprint/fphal/pkg/options"
	"github.com/go-fprint/fphal/pkg/sugar"
)

func main() {
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelDebug)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	}))

	dev, err := fphal.Open(emulated.DriverName,
		options.WithLogger(logger),
		options.WithSamplesNeeded(3),
	)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = dev.Close()
	}()

	if inf, ok := dev.(fphal.Informer); ok {
		info := inf.SensorInfo()
		fmt.Printf("Sensor: %s (%s, %s), HAL %s\n",
			info.SensorID, info.Kind, info.Strength, info.Version)
	}

	events, err := sugar.Subscribe(dev, 64)
	if err != nil {
		panic(err)
	}

	storeDir, err := os.MkdirTemp("", "fphal-example-*")
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = os.RemoveAll(storeDir)
	}()
	if err := dev.SetActiveGroup(0, storeDir); err != nil {
		panic(err)
	}

	// The keymaster side of the handshake: a challenge bound into a
	// hardware auth token proves the user just passed another factor.
	challenge, err := dev.GenerateChallenge()
	if err != nil {
		panic(err)
	}
	emu := dev.(*emulated.Driver)
	hat, err := emu.Minter().Mint(challenge, 42, 0, hwauth.TypePassword)
	if err != nil {
		panic(err)
	}

	if err := dev.Enroll(hat, 30*time.Second); err != nil {
		panic(err)
	}
	for i := 0; i < 3; i++ {
		emu.PresentFinger(0, fptypes.AcquiredGood)
	}
	fid, err := sugar.AwaitEnrolled(events, 5*time.Second)
	if err != nil {
		panic(err)
	}
	fmt.Printf("Enrolled finger: %d\n", fid)

	ids, err := sugar.EnumerateSync(dev, events, 5*time.Second)
	if err != nil {
		panic(err)
	}
	fmt.Printf("Templates on sensor: %v\n", ids)

	if err := dev.Authenticate(0xdeadbeef); err != nil {
		panic(err)
	}
	emu.PresentFinger(fid, fptypes.AcquiredGood)
	authEv, err := sugar.AwaitAuthenticated(events, 5*time.Second)
	if err != nil {
		panic(err)
	}
	fmt.Printf("Authenticated finger %d, token challenge %#x\n",
		authEv.Finger, authEv.Token.Challenge)

	authID, err := dev.GetAuthenticatorID()
	if err != nil {
		panic(err)
	}
	fmt.Printf("Authenticator id: %#x\n", authID)

	if err := dev.Remove(nil); err != nil {
		panic(err)
	}
}
