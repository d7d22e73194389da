// Command genstore generates a synthetic CSV result store for demos and
// load testing. It writes a chain of channels draining through a
// culvert to an outlet, with a pit at the culvert inlet, plus 2D plot
// output and reporting location series, and maxima tables computed from
// the generated series.
//
// Usage:
//
//	go run ./cmd/genstore -out data/demo -name M01_5m_001
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

var referenceTime = time.Date(2024, time.April, 26, 0, 0, 0, 0, time.UTC)

const (
	nodeCount  = 5
	outputDT   = 5.0 / 60.0 // hours
	runHours   = 3.0
	bedDrop    = 0.8 // fall per channel
	channelLen = 120.0
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output directory for the store")
	name := flag.String("name", "M01_5m_001", "simulation id")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}

	times := timeAxis()
	nodes := nodeIDs()

	files := map[string][][]string{
		"nodes.csv":    nodeInfo(nodes),
		"channels.csv": channelInfo(nodes),
		"wl.csv":       seriesTable(times, nodes, waterLevel),
		"q.csv":        seriesTable(times, channelIDs(), flow),
		"v.csv":        seriesTable(times, channelIDs(), velocity),
		"node_max.csv": maximaTable(times, nodes, "Hmax", waterLevel),
		"chan_max.csv": maximaTwoTable(times, channelIDs(), "Qmax", flow, "Vmax", velocity),
		"po_wl.csv":    seriesTable(times, []string{"po1", "po2"}, poWaterLevel),
		"rl_wl.csv":    seriesTable(times, []string{"rl1"}, poWaterLevel),
	}
	for file, rows := range files {
		if err := writeCSV(filepath.Join(*out, file), rows); err != nil {
			return err
		}
	}

	index := [][2]string{
		{"Format Version", "1"},
		{"Simulation ID", *name},
		{"Reference Time", referenceTime.Format("2006-01-02 15:04:05")},
		{"Node Info", "nodes.csv"},
		{"Channel Info", "channels.csv"},
		{"1D Water Levels", "wl.csv"},
		{"1D Flows", "q.csv"},
		{"1D Velocities", "v.csv"},
		{"1D Node Maximums", "node_max.csv"},
		{"1D Channel Maximums", "chan_max.csv"},
		{"2D Point Water Levels [1]", "po_wl.csv"},
		{"Reporting Location Points Water Levels", "rl_wl.csv"},
	}
	if err := writeIndex(filepath.Join(*out, *name+".tpc"), index); err != nil {
		return err
	}

	log.Printf("wrote store %s: %d nodes, %d channels, %d time steps",
		*name, nodeCount, nodeCount, len(times))
	return nil
}

func timeAxis() []float64 {
	var out []float64
	for t := 0.0; t <= runHours+1e-9; t += outputDT {
		out = append(out, t)
	}
	return out
}

func nodeIDs() []string {
	out := make([]string, nodeCount)
	for i := range out {
		out[i] = fmt.Sprintf("n%d", i+1)
	}
	return out
}

// channelIDs names the chain c1..c(n-1) plus the pit channel.
func channelIDs() []string {
	var out []string
	for i := 1; i < nodeCount; i++ {
		out = append(out, fmt.Sprintf("c%d", i))
	}
	return append(out, "pit1")
}

func bedLevel(nodeIdx int) float64 {
	return 12.0 - bedDrop*float64(nodeIdx)
}

// waterLevel is a flood wave: a skewed pulse peaking around t=1h,
// arriving slightly later at each downstream node.
func waterLevel(nodeIdx int, t float64) float64 {
	lag := 0.1 * float64(nodeIdx)
	return bedLevel(nodeIdx) + 0.3 + 2.2*pulse(t-lag)
}

func flow(chanIdx int, t float64) float64 {
	return 25.0 * pulse(t-0.05*float64(chanIdx))
}

func velocity(chanIdx int, t float64) float64 {
	return 1.8 * pulse(t-0.05*float64(chanIdx))
}

func poWaterLevel(idx int, t float64) float64 {
	return 14.0 + float64(idx) + 1.5*pulse(t)
}

// pulse rises to 1 at t=1 and decays with a long tail.
func pulse(t float64) float64 {
	if t <= 0 {
		return 0
	}
	return t * math.Exp(1-t)
}

func nodeInfo(nodes []string) [][]string {
	rows := [][]string{{"Node", "Bed Level", "Top Level"}}
	for i, n := range nodes {
		rows = append(rows, []string{n, ftoa(bedLevel(i)), ftoa(bedLevel(i) + 5)})
	}
	return rows
}

// channelInfo builds the chain n1-c1-n2-...-n5, makes the middle
// channel a culvert, and drops a pit onto the culvert's upstream node.
func channelInfo(nodes []string) [][]string {
	rows := [][]string{{
		"Channel", "US Node", "DS Node", "US Channel", "DS Channel",
		"Flags", "Length", "US Invert", "DS Invert", "US Obvert", "DS Obvert",
	}}
	culvert := (nodeCount - 1) / 2
	for i := 1; i < nodeCount; i++ {
		id := fmt.Sprintf("c%d", i)
		us, ds := "------", "------"
		if i > 1 {
			us = fmt.Sprintf("c%d", i-1)
		}
		if i < nodeCount-1 {
			ds = fmt.Sprintf("c%d", i+1)
		}
		flags := ""
		usInvert, dsInvert := bedLevel(i-1), bedLevel(i)
		usObvert, dsObvert := "", ""
		if i == culvert {
			flags = "C"
			usObvert = ftoa(usInvert + 1.2)
			dsObvert = ftoa(dsInvert + 1.2)
		}
		rows = append(rows, []string{
			id, nodes[i-1], nodes[i], us, ds, flags,
			ftoa(channelLen), ftoa(usInvert), ftoa(dsInvert), usObvert, dsObvert,
		})
	}
	pitNode := nodes[culvert-1]
	rows = append(rows, []string{
		"pit1", "pit1.us", pitNode, "------", "------", "R",
		"1.0", ftoa(bedLevel(culvert-1) + 0.5), ftoa(bedLevel(culvert - 1)), "", "",
	})
	return rows
}

func seriesTable(times []float64, ids []string, value func(int, float64) float64) [][]string {
	header := append([]string{"Time (h)"}, ids...)
	rows := [][]string{header}
	for _, t := range times {
		row := []string{ftoa(t)}
		for i := range ids {
			row = append(row, ftoa(value(i, t)))
		}
		rows = append(rows, row)
	}
	return rows
}

func maximaTable(times []float64, ids []string, col string, value func(int, float64) float64) [][]string {
	rows := [][]string{{"ID", col, "Time " + col}}
	for i, id := range ids {
		max, tmax := seriesMax(times, i, value)
		rows = append(rows, []string{id, ftoa(max), ftoa(tmax)})
	}
	return rows
}

func maximaTwoTable(times []float64, ids []string, colA string, valA func(int, float64) float64, colB string, valB func(int, float64) float64) [][]string {
	rows := [][]string{{"ID", colA, "Time " + colA, colB, "Time " + colB}}
	for i, id := range ids {
		maxA, tmaxA := seriesMax(times, i, valA)
		maxB, tmaxB := seriesMax(times, i, valB)
		rows = append(rows, []string{id, ftoa(maxA), ftoa(tmaxA), ftoa(maxB), ftoa(tmaxB)})
	}
	return rows
}

func seriesMax(times []float64, idx int, value func(int, float64) float64) (max, tmax float64) {
	max = math.Inf(-1)
	for _, t := range times {
		if v := value(idx, t); v > max {
			max, tmax = v, t
		}
	}
	return max, tmax
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeIndex(path string, entries [][2]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	fmt.Fprintln(f, "! Generated result store index")
	for _, e := range entries {
		fmt.Fprintf(f, "%s == %s\n", e[0], e[1])
	}
	return f.Close()
}
