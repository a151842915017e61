package cache

import (
	"net/http"

	"github.com/alumni-connect/gallery-service/internal/utils/response"
	"github.com/go-redis/redis/v8"
)

// CacheStats represents cache statistics for the admin dashboard
type CacheStats struct {
	RedisConnected bool     `json:"redis_connected"`
	CacheKeys      []string `json:"cache_keys"`
	KeyCount       int      `json:"total_keys"`
}

// GetCacheStats godoc
// @Summary      Gallery cache statistics
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response
// @Router       /gallery/cache [get]
func GetCacheStats(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		stats := CacheStats{RedisConnected: true}

		if _, err := redisClient.Ping(ctx).Result(); err != nil {
			stats.RedisConnected = false
			response.WriteJSON(w, http.StatusOK, response.RequestOK("Cache stats retrieved", stats))
			return
		}

		keys := redisClient.Keys(ctx, KeyPrefix+"*")
		if keys.Err() == nil {
			stats.CacheKeys = keys.Val()
		}

		dbSize := redisClient.DBSize(ctx)
		if dbSize.Err() == nil {
			stats.KeyCount = int(dbSize.Val())
		}

		response.WriteJSON(w, http.StatusOK, response.RequestOK("Cache stats retrieved", stats))
	}
}

// ClearCache godoc
// @Summary      Drop cached gallery reads
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response
// @Failure      500  {object}  response.Response
// @Router       /gallery/cache [delete]
func ClearCache(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		keys := redisClient.Keys(ctx, KeyPrefix+"*")
		if keys.Err() != nil {
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(keys.Err()))
			return
		}

		var deleted int64
		if len(keys.Val()) > 0 {
			res := redisClient.Del(ctx, keys.Val()...)
			if res.Err() != nil {
				response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(res.Err()))
				return
			}
			deleted = res.Val()
		}

		response.WriteJSON(w, http.StatusOK, response.RequestOK("Cache cleared", map[string]interface{}{
			"deleted_keys": deleted,
		}))
	}
}
