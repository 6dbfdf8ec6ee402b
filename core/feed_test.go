package core

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedKeepsNewestFirst(t *testing.T) {
	f := NewFeed(3)
	assert.Empty(t, f.List())

	for i := 1; i <= 5; i++ {
		f.Add(FeedEntry{Title: fmt.Sprintf("e%d", i)})
	}
	var titles []string
	for _, e := range f.List() {
		titles = append(titles, e.Title)
		assert.NotEmpty(t, e.ID)
		assert.False(t, e.CreatedAt.IsZero())
	}
	assert.Equal(t, []string{"e5", "e4", "e3"}, titles)
}

func TestFeedSubscribe(t *testing.T) {
	f := NewFeed(0)
	ch, cancel := f.Subscribe()

	added := f.Add(FeedEntry{ID: "x", Title: "nowa"})
	select {
	case got := <-ch:
		assert.Equal(t, added, got)
	case <-time.After(time.Second):
		t.Fatal("l'entrada no ha arribat al subscriptor")
	}

	cancel()
	cancel()
	f.Add(FeedEntry{Title: "després"})
	select {
	case e := <-ch:
		t.Fatalf("entrada inesperada després de la baixa: %+v", e)
	default:
	}
	require.Len(t, f.List(), 2)
}

func TestFeedSlowSubscriberDoesNotBlock(t *testing.T) {
	f := NewFeed(200)
	_, cancel := f.Subscribe()
	defer cancel()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			f.Add(FeedEntry{Title: "x"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Add s'ha bloquejat amb un subscriptor que no llegeix")
	}
	assert.Len(t, f.List(), 100)
}
