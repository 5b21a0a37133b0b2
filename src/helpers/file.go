package helpers

import (
	"fmt"
	"os"
	"path/filepath"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

func OpenDataFile(dataDirectory, fileName string) (*os.File, error) {
	filePath := filepath.Join(dataDirectory, fileName)
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("error opening data file %s: %w", fileName, err)
	}
	return file, nil
}

// DeleteDataFile deletes a file
func DeleteDataFile(filePath string) error {
	return os.Remove(filePath)
}

// FileExists checks if a file exists and is not a directory
func FileExists(filename string, logger *zap.SugaredLogger) bool {
	info, err := os.Stat(filename)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warnw("error checking file for existence", "file", filename, "error", err)
		}
		return false
	}

	return !info.IsDir()
}

// EncodeBSON encodes a document into BSON bytes.
func EncodeBSON(doc bson.M) ([]byte, error) {
	data, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("error encoding bson: %w", err)
	}
	return data, nil
}

// DecodeBSON decodes BSON bytes back into a document.
func DecodeBSON(data []byte) (bson.M, error) {
	var doc bson.M
	if err := bson.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("error decoding bson: %w", err)
	}
	return doc, nil
}
