package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"net"
	"sync"
	"time"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:20000", "server address")
	conns := flag.Int("conns", 8, "number of concurrent connections")
	records := flag.Int("records", 100_000, "records sent on each connection")
	flag.Parse()

	t1 := time.Now()

	wg := &sync.WaitGroup{}
	for id := range *conns {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := send(*addr, id, *records); err != nil {
				log.Print("connection ", id, ": ", err)
			}
		}()
	}
	wg.Wait()

	t2 := time.Now()

	total := *conns * *records
	log.Print("records sent: ", total)
	log.Print("records per sec: ", float64(total)/t2.Sub(t1).Seconds())
}

func send(addr string, id, records int) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	w := bufio.NewWriter(conn)

	for seq := range records {
		if _, err := fmt.Fprintf(w, "conn=%d seq=%d value=%d\n", id, seq, rand.Int32N(255)); err != nil {
			return err
		}
	}

	return w.Flush()
}
