package tag

func component(v string) Tag {
	return newStringTag("component", v)
}

// Pre-defined component tags.
var (
	ComponentCacheBalancer   = component("cache-balancer")
	ComponentThreadPool      = component("thread-pool")
	ComponentEvictionTracker = component("eviction-tracker")
	ComponentCanary          = component("canary")
	ComponentLoadGenerator   = component("load-generator")
	ComponentOpsServer       = component("ops-server")
)
