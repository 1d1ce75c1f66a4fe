package kanban

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// CardInput is the card construction payload. Value is ignored when line
// items are supplied.
type CardInput struct {
	Title       string          `json:"titulo"`
	Client      string          `json:"cliente"`
	ClientID    *int64          `json:"clienteId,omitempty"`
	Description string          `json:"descricao"`
	Value       float64         `json:"valor"`
	Status      string          `json:"status"`
	StageID     int64           `json:"estagio"`
	LineItems   []LineItemInput `json:"servicos,omitempty"`
	ActionID    *int64          `json:"acaoId,omitempty"`
	Labels      []string        `json:"labels,omitempty"`
	Members     []string        `json:"membros,omitempty"`
	DueDate     *time.Time      `json:"dataVencimento,omitempty"`
}

type LineItemInput struct {
	ProductID int64 `json:"produtoId"`
	Quantity  int   `json:"quantidade"`
}

// CardPatch is a partial card update. Nil fields are left alone. The optional
// references are removed with the Clear flags, or by sending an explicit
// null for clienteId, acaoId or dataVencimento.
type CardPatch struct {
	Title       *string    `json:"titulo,omitempty"`
	Client      *string    `json:"cliente,omitempty"`
	ClientID    *int64     `json:"clienteId,omitempty"`
	Description *string    `json:"descricao,omitempty"`
	Value       *float64   `json:"valor,omitempty"`
	Status      *string    `json:"status,omitempty"`
	ActionID    *int64     `json:"acaoId,omitempty"`
	Labels      *[]string  `json:"labels,omitempty"`
	Members     *[]string  `json:"membros,omitempty"`
	DueDate     *time.Time `json:"dataVencimento,omitempty"`

	ClearClientID bool `json:"limparCliente,omitempty"`
	ClearActionID bool `json:"limparAcao,omitempty"`
	ClearDueDate  bool `json:"limparVencimento,omitempty"`
}

func (p *CardPatch) UnmarshalJSON(data []byte) error {
	type plain CardPatch
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*p = CardPatch(decoded)
	if explicitNull(fields, "clienteId") {
		p.ClearClientID = true
	}
	if explicitNull(fields, "acaoId") {
		p.ClearActionID = true
	}
	if explicitNull(fields, "dataVencimento") {
		p.ClearDueDate = true
	}
	return nil
}

func explicitNull(fields map[string]json.RawMessage, key string) bool {
	value, ok := fields[key]
	return ok && bytes.Equal(bytes.TrimSpace(value), []byte("null"))
}

// Merge overlays the non-nil fields of next onto p.
func (p CardPatch) Merge(next CardPatch) CardPatch {
	if next.Title != nil {
		p.Title = next.Title
	}
	if next.Client != nil {
		p.Client = next.Client
	}
	if next.ClientID != nil {
		p.ClientID = next.ClientID
		p.ClearClientID = false
	}
	if next.ClearClientID {
		p.ClientID = nil
		p.ClearClientID = true
	}
	if next.Description != nil {
		p.Description = next.Description
	}
	if next.Value != nil {
		p.Value = next.Value
	}
	if next.Status != nil {
		p.Status = next.Status
	}
	if next.ActionID != nil {
		p.ActionID = next.ActionID
		p.ClearActionID = false
	}
	if next.ClearActionID {
		p.ActionID = nil
		p.ClearActionID = true
	}
	if next.Labels != nil {
		p.Labels = next.Labels
	}
	if next.Members != nil {
		p.Members = next.Members
	}
	if next.DueDate != nil {
		p.DueDate = next.DueDate
		p.ClearDueDate = false
	}
	if next.ClearDueDate {
		p.DueDate = nil
		p.ClearDueDate = true
	}
	return p
}

func (p CardPatch) Empty() bool {
	return p == CardPatch{}
}

// Card returns the card with cardID and the stage that holds it.
func (b *Board) Card(cardID int64) (*Card, *Stage, error) {
	for i := range b.Stages {
		stage := &b.Stages[i]
		for j := range stage.Cards {
			if stage.Cards[j].ID == cardID {
				return &stage.Cards[j], stage, nil
			}
		}
	}
	return nil, nil, notFound("card %d not found", cardID)
}

// AddCard validates the payload completely before appending the new card to
// the end of its stage.
func (b *Board) AddCard(ids IDSource, catalogs Catalogs, input CardInput, now time.Time) (*Card, error) {
	stage, err := b.Stage(input.StageID)
	if err != nil {
		return nil, err
	}
	status := StatusWarm
	if strings.TrimSpace(input.Status) != "" {
		if status, err = ParseStatus(input.Status); err != nil {
			return nil, err
		}
	}
	client, err := resolveClient(catalogs, input.Client, input.ClientID)
	if err != nil {
		return nil, err
	}
	if err := checkActionTag(catalogs, input.ActionID); err != nil {
		return nil, err
	}
	items := make([]LineItem, 0, len(input.LineItems))
	for _, in := range input.LineItems {
		item, err := snapshotLineItem(ids, catalogs, in.ProductID, in.Quantity)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	value := input.Value
	if len(items) > 0 {
		value = LedgerTotal(items)
	} else if value < 0 {
		return nil, validationError("value must not be negative")
	}

	card := Card{
		ID:          ids.NextID(),
		StageID:     stage.ID,
		Title:       strings.TrimSpace(input.Title),
		Client:      client,
		ClientID:    cloneID(input.ClientID),
		Description: strings.TrimSpace(input.Description),
		Value:       value,
		Status:      status,
		ActionID:    cloneID(input.ActionID),
		LineItems:   items,
		Comments:    []Comment{},
		Labels:      normalizeTags(input.Labels),
		Members:     normalizeTags(input.Members),
		DueDate:     cloneTime(input.DueDate),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	card.appendActivity(ids, fmt.Sprintf("criou o card em %s", stage.Name), "Plus", now)
	stage.Cards = append(stage.Cards, card)
	b.UpdatedAt = now
	return &stage.Cards[len(stage.Cards)-1], nil
}

// UpdateCard merges the patch into the card. The patch is validated as a whole
// first, so a rejected patch changes nothing.
func (b *Board) UpdateCard(ids IDSource, catalogs Catalogs, cardID int64, patch CardPatch, now time.Time) (*Card, error) {
	card, _, err := b.Card(cardID)
	if err != nil {
		return nil, err
	}
	if err := card.ApplyPatch(ids, catalogs, patch, now); err != nil {
		return nil, err
	}
	b.UpdatedAt = now
	return card, nil
}

// ApplyPatch is the card-level half of UpdateCard, also used to preview drafts.
func (c *Card) ApplyPatch(ids IDSource, catalogs Catalogs, patch CardPatch, now time.Time) error {
	switch {
	case patch.ClearClientID && patch.ClientID != nil:
		return validationError("clienteId cannot be set and cleared in the same update")
	case patch.ClearActionID && patch.ActionID != nil:
		return validationError("acaoId cannot be set and cleared in the same update")
	case patch.ClearDueDate && patch.DueDate != nil:
		return validationError("dataVencimento cannot be set and cleared in the same update")
	}
	var status Status
	if patch.Status != nil {
		parsed, err := ParseStatus(*patch.Status)
		if err != nil {
			return err
		}
		status = parsed
	}
	if patch.Value != nil && *patch.Value != c.Value {
		if err := c.checkManualValue(*patch.Value); err != nil {
			return err
		}
	}
	client := c.Client
	if patch.Client != nil || patch.ClientID != nil || patch.ClearClientID {
		name := c.Client
		if patch.Client != nil {
			name = *patch.Client
		}
		clientID := c.ClientID
		if patch.ClearClientID {
			clientID = nil
		}
		if patch.ClientID != nil {
			clientID = patch.ClientID
			if patch.Client == nil {
				name = ""
			}
		}
		resolved, err := resolveClient(catalogs, name, clientID)
		if err != nil {
			return err
		}
		client = resolved
	}
	if patch.ActionID != nil {
		if err := checkActionTag(catalogs, patch.ActionID); err != nil {
			return err
		}
	}

	if patch.Title != nil {
		c.Title = strings.TrimSpace(*patch.Title)
	}
	c.Client = client
	if patch.ClientID != nil {
		c.ClientID = cloneID(patch.ClientID)
	} else if patch.ClearClientID {
		c.ClientID = nil
	}
	if patch.Description != nil {
		c.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Value != nil && *patch.Value != c.Value {
		c.Value = *patch.Value
		c.appendActivity(ids, fmt.Sprintf("alterou o valor para %.2f", c.Value), "DollarSign", now)
	}
	if patch.ActionID != nil {
		c.ActionID = cloneID(patch.ActionID)
	} else if patch.ClearActionID {
		c.ActionID = nil
	}
	if patch.Labels != nil {
		c.Labels = normalizeTags(*patch.Labels)
	}
	if patch.Members != nil {
		c.Members = normalizeTags(*patch.Members)
	}
	if patch.DueDate != nil {
		c.DueDate = cloneTime(patch.DueDate)
	} else if patch.ClearDueDate {
		c.DueDate = nil
	}
	if patch.Status != nil {
		if err := c.SetStatus(ids, status, now); err != nil {
			return err
		}
	}
	c.UpdatedAt = now
	return nil
}

// DeleteCard removes the card and everything it owns.
func (b *Board) DeleteCard(cardID int64, now time.Time) error {
	for i := range b.Stages {
		stage := &b.Stages[i]
		for j := range stage.Cards {
			if stage.Cards[j].ID == cardID {
				stage.Cards = append(stage.Cards[:j:j], stage.Cards[j+1:]...)
				b.UpdatedAt = now
				return nil
			}
		}
	}
	return notFound("card %d not found", cardID)
}

func (c *Card) AddLabel(ids IDSource, label string, now time.Time) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return validationError("label is required")
	}
	if containsFold(c.Labels, label) {
		return nil
	}
	c.Labels = append(c.Labels, label)
	c.UpdatedAt = now
	c.appendActivity(ids, "adicionou a etiqueta "+label, "Tag", now)
	return nil
}

func (c *Card) RemoveLabel(ids IDSource, label string, now time.Time) error {
	idx := indexFold(c.Labels, strings.TrimSpace(label))
	if idx < 0 {
		return notFound("label %q not found on card %d", label, c.ID)
	}
	removed := c.Labels[idx]
	c.Labels = append(c.Labels[:idx:idx], c.Labels[idx+1:]...)
	c.UpdatedAt = now
	c.appendActivity(ids, "removeu a etiqueta "+removed, "Tag", now)
	return nil
}

func (c *Card) AddMember(ids IDSource, member string, now time.Time) error {
	member = strings.TrimSpace(member)
	if member == "" {
		return validationError("member name is required")
	}
	if containsFold(c.Members, member) {
		return nil
	}
	c.Members = append(c.Members, member)
	c.UpdatedAt = now
	c.appendActivity(ids, "adicionou "+member+" ao card", "Users", now)
	return nil
}

func (c *Card) RemoveMember(ids IDSource, member string, now time.Time) error {
	idx := indexFold(c.Members, strings.TrimSpace(member))
	if idx < 0 {
		return notFound("member %q not found on card %d", member, c.ID)
	}
	removed := c.Members[idx]
	c.Members = append(c.Members[:idx:idx], c.Members[idx+1:]...)
	c.UpdatedAt = now
	c.appendActivity(ids, "removeu "+removed+" do card", "Users", now)
	return nil
}

// SetDueDate sets or, with nil, clears the due date.
func (c *Card) SetDueDate(ids IDSource, due *time.Time, now time.Time) {
	c.DueDate = cloneTime(due)
	c.UpdatedAt = now
	if due == nil {
		c.appendActivity(ids, "removeu a data de vencimento", "Calendar", now)
		return
	}
	c.appendActivity(ids, "definiu a data de vencimento para "+due.Format("02/01/2006"), "Calendar", now)
}

// AddAttachment bumps the attachment counter.
func (c *Card) AddAttachment(ids IDSource, name string, now time.Time) {
	c.Attachments++
	c.UpdatedAt = now
	text := "adicionou um anexo"
	if name = strings.TrimSpace(name); name != "" {
		text += " " + name
	}
	c.appendActivity(ids, text, "Paperclip", now)
}

// resolveClient checks a client reference and fills an empty name from the catalog.
func resolveClient(catalogs Catalogs, name string, clientID *int64) (string, error) {
	name = strings.TrimSpace(name)
	if clientID != nil {
		if catalogs == nil {
			return "", notFound("client %d not found", *clientID)
		}
		client, ok := catalogs.LookupClient(*clientID)
		if !ok {
			return "", notFound("client %d not found", *clientID)
		}
		if name == "" {
			name = client.Name
		}
	}
	if name == "" {
		return "", validationError("client is required")
	}
	return name, nil
}

func checkActionTag(catalogs Catalogs, actionID *int64) error {
	if actionID == nil {
		return nil
	}
	if catalogs == nil || !catalogs.HasActionTag(*actionID) {
		return notFound("action tag %d not found", *actionID)
	}
	return nil
}

func normalizeTags(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || containsFold(out, v) {
			continue
		}
		out = append(out, v)
	}
	return out
}

func containsFold(values []string, target string) bool {
	return indexFold(values, target) >= 0
}

func indexFold(values []string, target string) int {
	for i, v := range values {
		if strings.EqualFold(v, target) {
			return i
		}
	}
	return -1
}
