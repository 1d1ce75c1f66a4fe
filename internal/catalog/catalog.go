// Package catalog holds the flat collections cards refer to by id: action
// tags, products and clients.
package catalog

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"pipeline/internal/kanban"
)

type ActionTag struct {
	ID          int64  `json:"id" yaml:"id"`
	Name        string `json:"nome" yaml:"nome"`
	Description string `json:"descricao,omitempty" yaml:"descricao,omitempty"`
	Icon        string `json:"icone,omitempty" yaml:"icone,omitempty"`
	Color       string `json:"cor" yaml:"cor"`
	Order       int    `json:"ordem" yaml:"ordem"`
}

type ActionTagInput struct {
	Name        string `json:"nome"`
	Description string `json:"descricao"`
	Icon        string `json:"icone"`
	Color       string `json:"cor"`
	Order       *int   `json:"ordem,omitempty"`
}

type Product struct {
	ID          int64   `json:"id"`
	Name        string  `json:"nome"`
	Price       float64 `json:"valor"`
	Description string  `json:"descricao,omitempty"`
}

// UnmarshalJSON accepts the price under either "valor" or the older "preco".
func (p *Product) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID          int64    `json:"id"`
		Name        string   `json:"nome"`
		Price       *float64 `json:"valor"`
		LegacyPrice *float64 `json:"preco"`
		Description string   `json:"descricao"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = Product{ID: raw.ID, Name: raw.Name, Description: raw.Description}
	switch {
	case raw.Price != nil:
		p.Price = *raw.Price
	case raw.LegacyPrice != nil:
		p.Price = *raw.LegacyPrice
	}
	return nil
}

type Client struct {
	ID    int64  `json:"id"`
	Name  string `json:"nome"`
	Email string `json:"email,omitempty"`
}

// ActionTags keeps the tag catalog sorted by display order.
type ActionTags struct {
	tags []ActionTag
}

func NewActionTags(tags []ActionTag) *ActionTags {
	out := &ActionTags{tags: append([]ActionTag{}, tags...)}
	out.sort()
	return out
}

func (a *ActionTags) List() []ActionTag {
	return append([]ActionTag{}, a.tags...)
}

func (a *ActionTags) Get(id int64) (ActionTag, bool) {
	for _, tag := range a.tags {
		if tag.ID == id {
			return tag, true
		}
	}
	return ActionTag{}, false
}

// Resolve maps a card's tag reference to the tag. Dangling references left by
// deleted tags resolve to nothing.
func (a *ActionTags) Resolve(id *int64) (ActionTag, bool) {
	if id == nil {
		return ActionTag{}, false
	}
	return a.Get(*id)
}

// Add appends a tag. Without an explicit order it goes after the current last one.
func (a *ActionTags) Add(ids kanban.IDSource, input ActionTagInput) (ActionTag, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return ActionTag{}, fmt.Errorf("%w: action tag name is required", kanban.ErrValidation)
	}
	order := a.nextOrder()
	if input.Order != nil {
		order = *input.Order
	}
	tag := ActionTag{
		ID:          ids.NextID(),
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Icon:        strings.TrimSpace(input.Icon),
		Color:       strings.TrimSpace(input.Color),
		Order:       order,
	}
	a.tags = append(a.tags, tag)
	a.sort()
	return tag, nil
}

func (a *ActionTags) Update(id int64, input ActionTagInput) (ActionTag, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return ActionTag{}, fmt.Errorf("%w: action tag name is required", kanban.ErrValidation)
	}
	for i := range a.tags {
		if a.tags[i].ID != id {
			continue
		}
		a.tags[i].Name = name
		a.tags[i].Description = strings.TrimSpace(input.Description)
		a.tags[i].Icon = strings.TrimSpace(input.Icon)
		a.tags[i].Color = strings.TrimSpace(input.Color)
		if input.Order != nil {
			a.tags[i].Order = *input.Order
		}
		updated := a.tags[i]
		a.sort()
		return updated, nil
	}
	return ActionTag{}, fmt.Errorf("%w: action tag %d not found", kanban.ErrNotFound, id)
}

func (a *ActionTags) Delete(id int64) error {
	for i := range a.tags {
		if a.tags[i].ID == id {
			a.tags = append(a.tags[:i:i], a.tags[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: action tag %d not found", kanban.ErrNotFound, id)
}

func (a *ActionTags) nextOrder() int {
	highest := 0
	for _, tag := range a.tags {
		if tag.Order > highest {
			highest = tag.Order
		}
	}
	return highest + 1
}

func (a *ActionTags) sort() {
	sort.SliceStable(a.tags, func(i, j int) bool {
		return a.tags[i].Order < a.tags[j].Order
	})
}

// Set bundles the catalogs and satisfies kanban.Catalogs.
type Set struct {
	Products []Product
	Clients  []Client
	Tags     *ActionTags
}

var _ kanban.Catalogs = (*Set)(nil)

func (s *Set) LookupProduct(id int64) (kanban.Product, bool) {
	for _, p := range s.Products {
		if p.ID == id {
			return kanban.Product{ID: p.ID, Name: p.Name, Price: p.Price}, true
		}
	}
	return kanban.Product{}, false
}

func (s *Set) LookupClient(id int64) (kanban.Client, bool) {
	for _, c := range s.Clients {
		if c.ID == id {
			return kanban.Client{ID: c.ID, Name: c.Name, Email: c.Email}, true
		}
	}
	return kanban.Client{}, false
}

func (s *Set) HasActionTag(id int64) bool {
	if s.Tags == nil {
		return false
	}
	_, ok := s.Tags.Get(id)
	return ok
}
