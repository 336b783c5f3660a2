package queue

import "github.com/redis/go-redis/v9"

// KEYS: lock, stalled. ARGV: token, lock duration (ms), job id.
var takeLockScript = redis.NewScript(`
if redis.call("SET", KEYS[1], ARGV[1], "NX", "PX", ARGV[2]) then
  redis.call("SREM", KEYS[2], ARGV[3])
  return 1
end
return 0
`)

// KEYS: lock. ARGV: token, lock duration (ms).
var extendLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
  return 1
end
return 0
`)

// KEYS: lock. ARGV: token.
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// KEYS: active, wait, lock, job. ARGV: job id, token.
// Hands a freshly fetched job back to the head of wait and drops its lock.
var moveToWaitScript = redis.NewScript(`
if redis.call("GET", KEYS[3]) ~= ARGV[2] then
  return -1
end
if redis.call("LREM", KEYS[1], -1, ARGV[1]) == 0 then
  return -2
end
redis.call("RPUSH", KEYS[2], ARGV[1])
redis.call("DEL", KEYS[3])
redis.call("HDEL", KEYS[4], "processedOn")
return 0
`)

// KEYS: active, wait, completed, failed, job, lock.
// ARGV: job id, token, timestamp (ms), outcome, attemptsMade, failedReason.
// Returns -1 when the lock is not owned by token, -2 when the job is no
// longer active.
var moveToFinishedScript = redis.NewScript(`
if redis.call("GET", KEYS[6]) ~= ARGV[2] then
  return -1
end
if redis.call("LREM", KEYS[1], -1, ARGV[1]) == 0 then
  return -2
end
redis.call("DEL", KEYS[6])
redis.call("HSET", KEYS[5], "attemptsMade", ARGV[5])
if ARGV[4] == "completed" then
  redis.call("ZADD", KEYS[3], ARGV[3], ARGV[1])
  redis.call("HSET", KEYS[5], "finishedOn", ARGV[3])
elseif ARGV[4] == "retry" then
  redis.call("HSET", KEYS[5], "failedReason", ARGV[6])
  redis.call("LPUSH", KEYS[2], ARGV[1])
else
  redis.call("ZADD", KEYS[4], ARGV[3], ARGV[1])
  redis.call("HSET", KEYS[5], "failedReason", ARGV[6], "finishedOn", ARGV[3])
end
return 0
`)

// KEYS: stalled, wait, active, failed. ARGV: key prefix, max stalled count,
// timestamp (ms), failed reason.
// Jobs marked on the previous pass that still have no lock are recovered or
// failed, then every unlocked active job is marked for the next pass.
var moveStalledScript = redis.NewScript(`
local failed = {}
local recovered = {}
local marked = redis.call("SMEMBERS", KEYS[1])
if #marked > 0 then
  redis.call("DEL", KEYS[1])
  for _, id in ipairs(marked) do
    local jobKey = ARGV[1] .. id
    if redis.call("EXISTS", jobKey .. ":lock") == 0 then
      if redis.call("LREM", KEYS[3], 1, id) > 0 then
        local count = redis.call("HINCRBY", jobKey, "stalledCounter", 1)
        if count > tonumber(ARGV[2]) then
          redis.call("ZADD", KEYS[4], ARGV[3], id)
          redis.call("HSET", jobKey, "failedReason", ARGV[4], "finishedOn", ARGV[3])
          table.insert(failed, id)
        else
          redis.call("RPUSH", KEYS[2], id)
          table.insert(recovered, id)
        end
      end
    end
  end
end
local active = redis.call("LRANGE", KEYS[3], 0, -1)
for _, id in ipairs(active) do
  if redis.call("EXISTS", ARGV[1] .. id .. ":lock") == 0 then
    redis.call("SADD", KEYS[1], id)
  end
end
return {failed, recovered}
`)
