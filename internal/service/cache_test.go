package service

import (
	"testing"
	"time"

	"github.com/bigkaa/coursehub-uploads/internal/domain/model"
)

func TestListCache_Generation(t *testing.T) {
	c := NewListCache(4, time.Minute)
	records := []*model.UploadRecord{{ID: "file_1_aaaaaaaaa", Name: "a.txt"}}

	gen := c.Generation()
	if !c.SetIfCurrent("", records, gen) {
		t.Fatal("SetIfCurrent в текущем поколении должен сохранять список")
	}
	if got, ok := c.Get(""); !ok || len(got) != 1 {
		t.Fatalf("Get = %v, %v", got, ok)
	}

	// Список прочитан до Purge — в кэш не попадает
	stale := c.Generation()
	c.Purge()
	if c.SetIfCurrent("", records, stale) {
		t.Error("список прошлого поколения не должен сохраняться")
	}
	if _, ok := c.Get(""); ok {
		t.Error("кэш должен быть пуст после Purge")
	}
}
