package api

import (
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// File is a binary value sent as a multipart file part.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

var (
	fileType = reflect.TypeOf(File{})
	timeType = reflect.TypeOf(time.Time{})
)

// isoTime matches the server's ISO-8601 parser: UTC with milliseconds.
const isoTime = "2006-01-02T15:04:05.000Z07:00"

// WriteMultipart flattens body into w. Keys follow the parent[child]
// convention, file slices repeat the same key, empty slices become an
// empty string field and slices of other values are sent as JSON.
func WriteMultipart(w *multipart.Writer, body any) error {
	if body == nil {
		return nil
	}
	return appendValue(w, "", reflect.ValueOf(body))
}

func appendValue(w *multipart.Writer, key string, v reflect.Value) error {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return nil
	}

	switch v.Type() {
	case fileType:
		return writeFile(w, key, v.Interface().(File))
	case timeType:
		return writeField(w, key, v.Interface().(time.Time).UTC().Format(isoTime))
	}

	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("multipart: unsupported map key type %s", v.Type().Key())
		}
		keys := make([]string, 0, v.Len())
		for _, k := range v.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := appendValue(w, childKey(key, k), v.MapIndex(reflect.ValueOf(k).Convert(v.Type().Key()))); err != nil {
				return err
			}
		}
		return nil

	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			name, omitEmpty, skip := jsonName(field)
			if skip {
				continue
			}
			fv := v.Field(i)
			if omitEmpty && fv.IsZero() {
				continue
			}
			if err := appendValue(w, childKey(key, name), fv); err != nil {
				return err
			}
		}
		return nil

	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8 {
			return writeField(w, key, string(v.Bytes()))
		}
		if v.Len() == 0 {
			return writeField(w, key, "")
		}
		if files, ok := fileElements(v); ok {
			for _, f := range files {
				if err := writeFile(w, key, f); err != nil {
					return err
				}
			}
			return nil
		}
		data, err := json.Marshal(v.Interface())
		if err != nil {
			return fmt.Errorf("multipart: encode %s: %w", key, err)
		}
		return writeField(w, key, string(data))

	case reflect.String:
		return writeField(w, key, v.String())
	case reflect.Bool:
		return writeField(w, key, strconv.FormatBool(v.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return writeField(w, key, strconv.FormatInt(v.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return writeField(w, key, strconv.FormatUint(v.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		return writeField(w, key, strconv.FormatFloat(v.Float(), 'f', -1, 64))
	}

	return fmt.Errorf("multipart: unsupported value type %s for %q", v.Type(), key)
}

// fileElements returns the files of v when every element is a File.
func fileElements(v reflect.Value) ([]File, bool) {
	files := make([]File, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		e := v.Index(i)
		for e.Kind() == reflect.Pointer || e.Kind() == reflect.Interface {
			if e.IsNil() {
				return nil, false
			}
			e = e.Elem()
		}
		if e.Type() != fileType {
			return nil, false
		}
		files = append(files, e.Interface().(File))
	}
	return files, true
}

func childKey(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "[" + child + "]"
}

func jsonName(field reflect.StructField) (name string, omitEmpty, skip bool) {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}
	parts := strings.Split(tag, ",")
	name = parts[0]
	if name == "" {
		name = field.Name
	}
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			omitEmpty = true
		}
	}
	return name, omitEmpty, false
}

func writeField(w *multipart.Writer, key, value string) error {
	if key == "" {
		return fmt.Errorf("multipart: top-level value must be a map or struct")
	}
	return w.WriteField(key, value)
}

func writeFile(w *multipart.Writer, key string, f File) error {
	if key == "" {
		return fmt.Errorf("multipart: top-level value must be a map or struct")
	}
	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(key), escapeQuotes(f.Name)))
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = part.Write(f.Data)
	return err
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
