// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Azimuth Contributors

package engine_test

import (
	"context"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // ginkgo convention

	"github.com/azimuth-mud/azimuth/internal/command"
	"github.com/azimuth-mud/azimuth/internal/world"
)

var _ = Describe("A running world", func() {
	var (
		f       *fixture
		chamber ulid.ULID
		hallway ulid.ULID
		alice   *client
		bob     *client
	)

	register := func(name, password string) ulid.ULID {
		id, err := f.engine.Authenticator().Register(context.Background(), name, password)
		Expect(err).NotTo(HaveOccurred())
		return id
	}

	BeforeEach(func() {
		f = newFixture(GinkgoT())
		chamber = f.find(GinkgoT(), "The Starting Chamber")
		hallway = f.find(GinkgoT(), "Narrow Hallway")
		register("alice", "secret")
		register("bob", "hunter2")

		alice = f.connect(GinkgoT())
		alice.login(GinkgoT(), "alice", "secret")
		bob = f.connect(GinkgoT())
		bob.login(GinkgoT(), "bob", "hunter2")
		alice.drain()
	})

	Describe("an object owned by a player", func() {
		var ball ulid.ULID

		BeforeEach(func() {
			aliceID := f.engine.Sessions().GetSession(alice.sid).PlayerID
			_, err := f.graph.Update(func(tx *world.Tx) error {
				thing, ok := tx.Prototype("$thing")
				Expect(ok).To(BeTrue())
				var err error
				ball, err = tx.CreateObject(world.NewObject{
					Name:     "ball",
					Parents:  []ulid.ULID{thing},
					Owner:    aliceID,
					Location: aliceID,
					Props:    map[string]world.Value{"color": world.String("blue")},
				})
				return err
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("can be dropped by its owner and the room is told", func() {
			Expect(alice.send("drop ball")).To(ContainSubstring("You drop ball."))
			Expect(f.location(ball)).To(Equal(chamber))
			Expect(bob.drain()).To(ContainSubstring("alice drops ball."))
		})

		It("refuses property changes from anyone else", func() {
			Expect(alice.send("drop ball")).To(ContainSubstring("You drop ball."))
			Expect(bob.send(`set ball.color to "red"`)).To(ContainSubstring(command.MsgPermissionDenied))

			var color string
			Expect(f.graph.View(func(v *world.View) error {
				color = v.StringProperty(ball, "color")
				return nil
			})).To(Succeed())
			Expect(color).To(Equal("blue"))
		})

		It("lets its owner change properties", func() {
			Expect(alice.send(`set ball.color to "red"`)).To(ContainSubstring("Set ball.color to"))
		})

		It("leaves the world untouched when no verb matches", func() {
			before := f.graph.Snapshot()
			Expect(alice.send("frob ball")).To(Equal(command.MsgNotUnderstood))
			Expect(f.graph.Snapshot()).To(Equal(before))
		})
	})

	It("announces a wizard logging in to the room", func() {
		wiz := f.connect(GinkgoT())
		wiz.login(GinkgoT(), "wizard", "wizard")

		Expect(f.location(f.seeded.Owner)).To(Equal(chamber))
		Expect(alice.drain()).To(ContainSubstring("wizard has arrived."))
		Expect(bob.drain()).To(ContainSubstring("wizard has arrived."))
	})

	It("answers look the same way twice without changing anything", func() {
		before := f.graph.Snapshot()
		first := alice.send("look")
		second := alice.send("look")

		Expect(first).To(ContainSubstring("The Starting Chamber"))
		Expect(first).To(ContainSubstring("bob"))
		Expect(second).To(Equal(first))
		Expect(f.graph.Snapshot()).To(Equal(before))
		Expect(bob.drain()).To(BeEmpty())
	})

	It("keeps speech inside the room", func() {
		Expect(bob.send("north")).To(ContainSubstring("Narrow Hallway"))
		Expect(f.location(f.engine.Sessions().GetSession(bob.sid).PlayerID)).To(Equal(hallway))
		Expect(alice.drain()).To(ContainSubstring("bob leaves"))

		Expect(alice.send("say is anyone here?")).To(ContainSubstring(`You say, "is anyone here?"`))
		Expect(bob.drain()).NotTo(ContainSubstring("is anyone here?"))

		Expect(bob.send("south")).To(ContainSubstring("The Starting Chamber"))
		Expect(alice.drain()).To(ContainSubstring("bob arrives."))
		alice.send("say welcome back")
		Expect(bob.drain()).To(ContainSubstring(`alice says, "welcome back"`))
	})
})
