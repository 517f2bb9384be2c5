package redis

const (
	// writeDayRecordScript atomically replaces a day record, its per-app
	// breakdown and its entry in the day index
	writeDayRecordScript = `
local record_key = KEYS[1]      -- {prefix}:day:{day}
local apps_key = KEYS[2]        -- {prefix}:day:{day}:apps
local index_key = KEYS[3]       -- {prefix}:days

local day = ARGV[1]
local active_seconds = ARGV[2]
local updated_at = ARGV[3]
local score = ARGV[4]

-- Replace, never merge
redis.call('DEL', record_key, apps_key)

redis.call('HSET', record_key,
  'day', day,
  'active_seconds', active_seconds,
  'updated_at', updated_at
)

-- Remaining arguments are app/seconds pairs
for i = 5, #ARGV, 2 do
  redis.call('HSET', apps_key, ARGV[i], ARGV[i + 1])
end

redis.call('ZADD', index_key, score, day)

return 'OK'
`

	// deleteDaysBeforeScript removes every indexed day scored below the cutoff
	deleteDaysBeforeScript = `
local index_key = KEYS[1]       -- {prefix}:days
local prefix = ARGV[1]
local cutoff = ARGV[2]

local days = redis.call('ZRANGEBYSCORE', index_key, '-inf', '(' .. cutoff)
for _, day in ipairs(days) do
  redis.call('DEL', prefix .. ':day:' .. day, prefix .. ':day:' .. day .. ':apps')
  redis.call('ZREM', index_key, day)
end

return #days
`
)
