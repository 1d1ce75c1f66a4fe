// Package kanban holds the board → stage → card graph and every mutation that
// keeps it consistent: stage lifecycle, card moves, line-item ledger, comment
// thread and status transitions. Totals are always derived at read time.
package kanban

import "time"

type Status string

const (
	StatusHot  Status = "hot"
	StatusWarm Status = "warm"
	StatusCold Status = "cold"
	StatusLost Status = "lost"
)

type EntryKind string

const (
	KindComment  EntryKind = "comment"
	KindActivity EntryKind = "activity"
)

// SystemAuthor signs every synthesized activity entry.
const SystemAuthor = "Sistema"

type Board struct {
	ID          int64     `json:"id"`
	Name        string    `json:"nome"`
	Description string    `json:"descricao,omitempty"`
	Stages      []Stage   `json:"stages"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Stage struct {
	ID    int64  `json:"id"`
	Name  string `json:"nome"`
	Order int    `json:"ordem"`
	Color string `json:"cor"`
	Cards []Card `json:"cards"`
}

type Card struct {
	ID          int64      `json:"id"`
	StageID     int64      `json:"stageId"`
	Title       string     `json:"titulo,omitempty"`
	Client      string     `json:"cliente"`
	ClientID    *int64     `json:"clienteId,omitempty"`
	Description string     `json:"descricao"`
	Value       float64    `json:"valor"`
	Status      Status     `json:"status"`
	ActionID    *int64     `json:"acaoId,omitempty"`
	LineItems   []LineItem `json:"servicos"`
	Comments    []Comment  `json:"comentarios"`
	Labels      []string   `json:"labels"`
	Members     []string   `json:"membros"`
	DueDate     *time.Time `json:"dataVencimento,omitempty"`
	Attachments int        `json:"anexos"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// LineItem is a point-in-time snapshot of a catalog product.
type LineItem struct {
	ID        int64   `json:"id"`
	ProductID int64   `json:"produtoId"`
	Name      string  `json:"nome"`
	UnitValue float64 `json:"valor"`
	Quantity  int     `json:"quantidade"`
}

type Comment struct {
	ID        int64     `json:"id"`
	Author    string    `json:"autor"`
	Text      string    `json:"texto"`
	CreatedAt time.Time `json:"createdAt"`
	Kind      EntryKind `json:"tipo"`
	ReplyTo   *int64    `json:"respostaA,omitempty"`
	Icon      string    `json:"icone,omitempty"`
}

// Product is the subset of a catalog product the ledger snapshots.
type Product struct {
	ID    int64
	Name  string
	Price float64
}

// Client is the subset of a catalog client used to resolve card references.
type Client struct {
	ID    int64
	Name  string
	Email string
}

// Catalogs resolves the external collections a card may reference.
type Catalogs interface {
	LookupProduct(id int64) (Product, bool)
	LookupClient(id int64) (Client, bool)
	HasActionTag(id int64) bool
}
