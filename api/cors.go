package api

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// OriginAllowList matches request origins against exact entries and
// patterns with a single "*", e.g. "https://*.netlify.app".
type OriginAllowList struct {
	exact    map[string]struct{}
	patterns []originPattern
}

type originPattern struct {
	prefix, suffix string
}

func NewOriginAllowList(origins []string) *OriginAllowList {
	l := &OriginAllowList{exact: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "" {
			continue
		}
		if prefix, suffix, ok := strings.Cut(o, "*"); ok {
			l.patterns = append(l.patterns, originPattern{prefix: prefix, suffix: suffix})
			continue
		}
		l.exact[o] = struct{}{}
	}
	return l
}

func (l *OriginAllowList) Allowed(origin string) bool {
	if _, ok := l.exact[origin]; ok {
		return true
	}
	for _, p := range l.patterns {
		if len(origin) > len(p.prefix)+len(p.suffix) &&
			strings.HasPrefix(origin, p.prefix) &&
			strings.HasSuffix(origin, p.suffix) {
			return true
		}
	}
	return false
}

// CORS returns the middleware answering preflights for allowed origins only.
func CORS(allow *OriginAllowList) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOriginFunc:  allow.Allowed,
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "x-apikey"},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}
