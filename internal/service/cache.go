// cache.go — LRU-кэш удалённых списков файлов с TTL.
// Ключ — предмет (пустая строка — список без фильтра).
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/coursehub-uploads/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uc_list_cache_hits_total",
		Help: "Общее количество попаданий в кэш списков.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uc_list_cache_misses_total",
		Help: "Общее количество промахов кэша списков.",
	})
)

// ListCache — кэш списков удалённых записей по предмету.
// Поколение растёт при каждом Purge: список, прочитанный до записи или
// удаления, не попадает в кэш после неё.
type ListCache struct {
	mu    sync.Mutex
	gen   uint64
	cache *expirable.LRU[string, []*model.UploadRecord]
}

// NewListCache создаёт кэш на maxSize предметов с временем жизни ttl.
func NewListCache(maxSize int, ttl time.Duration) *ListCache {
	return &ListCache{cache: expirable.NewLRU[string, []*model.UploadRecord](maxSize, nil, ttl)}
}

// Get возвращает копию закэшированного списка.
func (c *ListCache) Get(subject string) ([]*model.UploadRecord, bool) {
	val, ok := c.cache.Get(subject)
	if !ok {
		cacheMissesTotal.Inc()
		return nil, false
	}
	cacheHitsTotal.Inc()
	return append([]*model.UploadRecord(nil), val...), true
}

// Generation возвращает текущее поколение. Берётся до чтения списка.
func (c *ListCache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// SetIfCurrent сохраняет копию списка, только если с момента gen не было Purge.
func (c *ListCache) SetIfCurrent(subject string, records []*model.UploadRecord, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false
	}
	c.cache.Add(subject, append([]*model.UploadRecord(nil), records...))
	return true
}

// Purge очищает кэш и начинает новое поколение (после записи или удаления).
func (c *ListCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.cache.Purge()
}

// Len возвращает число закэшированных предметов.
func (c *ListCache) Len() int {
	return c.cache.Len()
}
