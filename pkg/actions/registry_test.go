package actions_test

import (
	"errors"
	"time"

	"github.com/lisanmuaddib/meshbot-go/pkg/actions"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Registry", func() {
	var registry *actions.Registry

	BeforeEach(func() {
		registry = actions.NewRegistry(quietLogger())
	})

	It("loads well-formed actions and skips those without eligibility capabilities", func() {
		registry.Load([]actions.Candidate{
			{ID: "good", New: func() (actions.Action, error) { return &tickStub{name: "good"}, nil }},
			{ID: "bare", New: func() (actions.Action, error) { return &bareStub{}, nil }},
		})

		all := registry.ListAll()
		Expect(all).To(HaveLen(1))
		Expect(all).To(HaveKey("good"))
	})

	It("skips candidates whose constructor fails and keeps loading the rest", func() {
		registry.Load([]actions.Candidate{
			{ID: "broken", New: func() (actions.Action, error) { return nil, errors.New("boom") }},
			{ID: "good", New: func() (actions.Action, error) { return &tickStub{name: "good"}, nil }},
		})

		Expect(registry.ListAll()).To(HaveLen(1))
		Expect(registry.ListAll()).To(HaveKey("good"))
	})

	It("skips duplicate ids", func() {
		registry.Load([]actions.Candidate{
			{ID: "dup", New: func() (actions.Action, error) { return &tickStub{name: "first"}, nil }},
			{ID: "dup", New: func() (actions.Action, error) { return &tickStub{name: "second"}, nil }},
		})

		Expect(registry.Len()).To(Equal(1))
		Expect(registry.ListAll()["dup"].Name()).To(Equal("first"))
	})

	It("preserves load order in Entries", func() {
		registry.Load([]actions.Candidate{
			{ID: "b", New: func() (actions.Action, error) { return &tickStub{name: "b"}, nil }},
			{ID: "a", New: func() (actions.Action, error) { return &tickStub{name: "a"}, nil }},
			{ID: "c", New: func() (actions.Action, error) { return &tickStub{name: "c"}, nil }},
		})

		entries := registry.Entries()
		ids := []string{entries[0].ID, entries[1].ID, entries[2].ID}
		Expect(ids).To(Equal([]string{"b", "a", "c"}))
	})

	Describe("Describe", func() {
		It("falls back to a minimal description for actions without metadata", func() {
			registry.Load([]actions.Candidate{
				{ID: "plain", New: func() (actions.Action, error) { return &tickStub{name: "plain"}, nil }},
			})

			infos := registry.Describe()
			Expect(infos["plain"]).To(Equal(actions.Info{Name: "plain", Description: "none"}))
		})

		It("uses the action's own metadata when provided", func() {
			registry.Load([]actions.Candidate{
				{ID: "reboot_node", New: func() (actions.Action, error) {
					return actions.NewRebootAction(quietLogger(), 6*time.Hour), nil
				}},
			})

			info := registry.Describe()["reboot_node"]
			Expect(info.Name).To(Equal("Node Rebooter"))
			Expect(info.Interval).To(Equal(6 * time.Hour))
		})
	})

	It("reload clears the held set before loading again", func() {
		registry.Load([]actions.Candidate{
			{ID: "old", New: func() (actions.Action, error) { return &tickStub{name: "old"}, nil }},
		})
		Expect(registry.ListAll()).To(HaveKey("old"))

		registry.Reload([]actions.Candidate{
			{ID: "new", New: func() (actions.Action, error) { return &tickStub{name: "new"}, nil }},
		})

		all := registry.ListAll()
		Expect(all).To(HaveLen(1))
		Expect(all).To(HaveKey("new"))
	})
})
