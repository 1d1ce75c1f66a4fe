package kanban

import (
	"sort"
	"strings"
	"time"
)

// AddComment appends the comment followed by the activity entry announcing it.
func (c *Card) AddComment(ids IDSource, author, text string, now time.Time) (Comment, error) {
	author, text, err := commentFields(author, text)
	if err != nil {
		return Comment{}, err
	}
	entry := Comment{
		ID:        ids.NextID(),
		Author:    author,
		Text:      text,
		CreatedAt: now,
		Kind:      KindComment,
	}
	c.Comments = append(c.Comments, entry)
	c.appendActivity(ids, "adicionou um comentário", "MessageSquare", now)
	c.UpdatedAt = now
	return entry, nil
}

// AddReply stores a comment that points at parentID, which must be a user
// comment. The reply is still a flat entry in the thread; the link is only
// used to rebuild a tree for display.
func (c *Card) AddReply(ids IDSource, parentID int64, author, text string, now time.Time) (Comment, error) {
	author, text, err := commentFields(author, text)
	if err != nil {
		return Comment{}, err
	}
	if target, ok := c.entry(parentID); !ok || target.Kind != KindComment {
		return Comment{}, notFound("comment %d not found on card %d", parentID, c.ID)
	}
	parent := parentID
	entry := Comment{
		ID:        ids.NextID(),
		Author:    author,
		Text:      text,
		CreatedAt: now,
		Kind:      KindComment,
		ReplyTo:   &parent,
	}
	c.Comments = append(c.Comments, entry)
	c.UpdatedAt = now
	return entry, nil
}

// RecordActivity appends a system entry for an attribute change.
func (c *Card) RecordActivity(ids IDSource, text, icon string, now time.Time) (Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Comment{}, validationError("activity text is required")
	}
	return c.appendActivity(ids, text, icon, now), nil
}

func (c *Card) appendActivity(ids IDSource, text, icon string, now time.Time) Comment {
	entry := Comment{
		ID:        ids.NextID(),
		Author:    SystemAuthor,
		Text:      text,
		CreatedAt: now,
		Kind:      KindActivity,
		Icon:      icon,
	}
	c.Comments = append(c.Comments, entry)
	return entry
}

func (c *Card) entry(id int64) (Comment, bool) {
	for _, entry := range c.Comments {
		if entry.ID == id {
			return entry, true
		}
	}
	return Comment{}, false
}

func commentFields(author, text string) (string, string, error) {
	author = strings.TrimSpace(author)
	text = strings.TrimSpace(text)
	if author == "" {
		return "", "", validationError("comment author is required")
	}
	if text == "" {
		return "", "", validationError("comment text is required")
	}
	return author, text, nil
}

// Timeline returns the thread ordered by creation time, oldest first. Entries
// sharing a timestamp keep their stored order.
func Timeline(entries []Comment) []Comment {
	out := append([]Comment{}, entries...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

type ThreadNode struct {
	Comment
	Replies []*ThreadNode `json:"respostas"`
}

// ReplyTree rebuilds reply nesting from the flat thread. A reply only nests
// under an entry that precedes it; anything else is promoted to the top level.
func ReplyTree(entries []Comment) []*ThreadNode {
	ordered := Timeline(entries)
	seen := make(map[int64]*ThreadNode, len(ordered))
	roots := make([]*ThreadNode, 0, len(ordered))
	for _, entry := range ordered {
		node := &ThreadNode{Comment: entry, Replies: []*ThreadNode{}}
		if entry.ReplyTo != nil {
			if parent, ok := seen[*entry.ReplyTo]; ok {
				parent.Replies = append(parent.Replies, node)
				seen[entry.ID] = node
				continue
			}
		}
		roots = append(roots, node)
		seen[entry.ID] = node
	}
	return roots
}
