package server

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/mem"
)

// info renders the INFO reply: server, clients, memory and keyspace sections.
func (s *Server) info() string {
	var b strings.Builder

	section(&b, "Server",
		"redis_version", Version,
		"go_version", runtime.Version(),
		"uptime_in_seconds", fmt.Sprint(int64(time.Since(s.started).Seconds())),
	)

	section(&b, "Clients",
		"connected_clients", fmt.Sprint(s.clients.Load()),
		"total_commands_processed", fmt.Sprint(s.commands.Load()),
	)

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	var total, available uint64
	if vm, err := mem.VirtualMemory(); err == nil {
		total = vm.Total
		available = vm.Available
	}
	section(&b, "Memory",
		"used_memory", fmt.Sprint(ms.HeapAlloc),
		"total_system_memory", fmt.Sprint(total),
		"available_system_memory", fmt.Sprint(available),
	)

	b.WriteString("# Keyspace\r\n")
	for db := 0; db < s.dbs.Len(); db++ {
		ks, _ := s.dbs.Get(db)
		stats := ks.Stats()
		if stats["keys"] == 0 {
			continue
		}
		fmt.Fprintf(&b, "db%d:keys=%v,fields=%v\r\n", db, stats["keys"], stats["fields"])
	}

	return b.String()
}

func section(b *strings.Builder, title string, kv ...string) {
	fmt.Fprintf(b, "# %s\r\n", title)
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(b, "%s:%s\r\n", kv[i], kv[i+1])
	}
	b.WriteString("\r\n")
}
