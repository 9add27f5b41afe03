package cdrwriter

import (
	"os"
	"path/filepath"
	"time"

	"github.com/zonawifi/portero/core"
)

const (
	PACKET_BUFFER_SIZE = 1000
)

// Writes files rotating by date.
// The date in the name of the file is the creation date. Dates of the CDR
// stored may span a longer time than implied in the file name
type FileCDRWriter struct {

	// This channel will receive the CDR to write
	packetChan chan *core.RadiusPacket

	// To signal that we have finished processing CDR
	doneChan chan struct{}

	// Externally created, holding the method to format the CDR
	formatter CDRFormatter

	// Timestamp in unix seconds for the currently used file
	currentFileTimestamp int64

	// The file in use now
	file *os.File

	// Writer configuration
	rotateSeconds  int64
	filePath       string
	fileNameFormat string
}

// Builds a writer. fileNameFormat is a go time format string, evaluated at
// rotation time
func NewFileCDRWriter(filePath string, fileNameFormat string, formatter CDRFormatter, rotateSeconds int64) *FileCDRWriter {

	if err := os.MkdirAll(filePath, 0770); err != nil {
		panic("while initializing, could not create " + filePath + " :" + err.Error())
	}

	w := FileCDRWriter{
		packetChan:     make(chan *core.RadiusPacket, PACKET_BUFFER_SIZE),
		doneChan:       make(chan struct{}),
		formatter:      formatter,
		rotateSeconds:  rotateSeconds,
		filePath:       filePath,
		fileNameFormat: fileNameFormat,
	}

	w.rotateFile()

	go w.eventLoop()

	return &w
}

func (w *FileCDRWriter) eventLoop() {

	for rp := range w.packetChan {

		// Check if we must rotate
		if time.Now().Unix() >= w.currentFileTimestamp+w.rotateSeconds {
			w.rotateFile()
		}

		if _, err := w.file.WriteString(w.formatter.GetRadiusCDRString(rp)); err != nil {
			panic("file write error. Filename: " + w.file.Name() + " error: " + err.Error())
		}
	}

	close(w.doneChan)
}

// Writes the accounting packet to file. Non-blocking unless the buffer is full
func (w *FileCDRWriter) WriteRadiusCDR(rp *core.RadiusPacket) {
	w.packetChan <- rp
}

// Must be called in the eventLoop
func (w *FileCDRWriter) rotateFile() {

	if w.file != nil {
		w.file.Close()
	}

	fileName := filepath.Join(w.filePath, time.Now().Format(w.fileNameFormat)+".txt")

	file, err := os.OpenFile(fileName, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0770)
	if err != nil {
		panic("while rotating, could not create " + fileName + " due to " + err.Error())
	}
	w.file = file
	w.currentFileTimestamp = time.Now().Unix()
}

// Call when sure that no more write operations will be invoked
func (w *FileCDRWriter) Close() {
	close(w.packetChan)

	// Consume all the pending CDR in the buffer
	<-w.doneChan

	w.file.Close()
}
