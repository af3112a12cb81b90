package elastic

import "fmt"

// Index mappings per indexable. Text fields carry three shapes: the analyzed
// field itself for matching, .raw for exact filtering, and .sortable
// (lowercased keyword) for lexical ordering. Meta keys arrive as
// meta.<key>.{value,long,double,boolean,date} and are typed via dynamic
// templates so numeric and date sorting work without a fixed meta schema.

const postsMapping = `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 1,
    "analysis": {
      "normalizer": {
        "lowerasciinorm": {
          "type": "custom",
          "filter": ["lowercase", "asciifolding"]
        }
      }
    }
  },
  "mappings": {
    "dynamic_templates": [
      {
        "meta_value": {
          "path_match": "meta.*.value",
          "mapping": {
            "type": "text",
            "fields": {
              "raw": {"type": "keyword", "ignore_above": 10922},
              "sortable": {"type": "keyword", "normalizer": "lowerasciinorm", "ignore_above": 10922}
            }
          }
        }
      },
      {"meta_long": {"path_match": "meta.*.long", "mapping": {"type": "long"}}},
      {"meta_double": {"path_match": "meta.*.double", "mapping": {"type": "double"}}},
      {"meta_boolean": {"path_match": "meta.*.boolean", "mapping": {"type": "boolean"}}},
      {
        "meta_date": {
          "path_match": "meta.*.date",
          "mapping": {"type": "date", "format": "yyyy-MM-dd HH:mm:ss||yyyy-MM-dd"}
        }
      },
      {
        "terms": {
          "path_match": "terms.*",
          "mapping": {
            "type": "object",
            "properties": {
              "term_id": {"type": "long"},
              "name": {
                "type": "text",
                "fields": {"raw": {"type": "keyword"}, "sortable": {"type": "keyword", "normalizer": "lowerasciinorm"}}
              },
              "slug": {"type": "keyword"}
            }
          }
        }
      }
    ],
    "properties": {
      "ID": {"type": "long"},
      "type": {"type": "keyword"},
      "slug": {"type": "keyword"},
      "status": {"type": "keyword"},
      "author": {
        "type": "text",
        "fields": {"raw": {"type": "keyword"}, "sortable": {"type": "keyword", "normalizer": "lowerasciinorm"}}
      },
      "title": {
        "type": "text",
        "analyzer": "standard",
        "fields": {
          "raw": {"type": "keyword", "ignore_above": 10922},
          "sortable": {"type": "keyword", "normalizer": "lowerasciinorm", "ignore_above": 10922}
        }
      },
      "excerpt": {"type": "text"},
      "content": {"type": "text"},
      "date": {"type": "date", "format": "yyyy-MM-dd HH:mm:ss"},
      "modified": {"type": "date", "format": "yyyy-MM-dd HH:mm:ss"}
    }
  }
}`

const usersMapping = `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 1,
    "analysis": {
      "normalizer": {
        "lowerasciinorm": {
          "type": "custom",
          "filter": ["lowercase", "asciifolding"]
        }
      }
    }
  },
  "mappings": {
    "dynamic_templates": [
      {
        "meta_value": {
          "path_match": "meta.*.value",
          "mapping": {
            "type": "text",
            "fields": {
              "raw": {"type": "keyword", "ignore_above": 10922},
              "sortable": {"type": "keyword", "normalizer": "lowerasciinorm", "ignore_above": 10922}
            }
          }
        }
      },
      {"meta_long": {"path_match": "meta.*.long", "mapping": {"type": "long"}}},
      {"meta_double": {"path_match": "meta.*.double", "mapping": {"type": "double"}}},
      {"meta_boolean": {"path_match": "meta.*.boolean", "mapping": {"type": "boolean"}}},
      {
        "meta_date": {
          "path_match": "meta.*.date",
          "mapping": {"type": "date", "format": "yyyy-MM-dd HH:mm:ss||yyyy-MM-dd"}
        }
      }
    ],
    "properties": {
      "ID": {"type": "long"},
      "type": {"type": "keyword"},
      "slug": {"type": "keyword"},
      "title": {
        "type": "text",
        "fields": {
          "raw": {"type": "keyword", "ignore_above": 10922},
          "sortable": {"type": "keyword", "normalizer": "lowerasciinorm", "ignore_above": 10922}
        }
      },
      "content": {"type": "text"},
      "date": {"type": "date", "format": "yyyy-MM-dd HH:mm:ss"},
      "modified": {"type": "date", "format": "yyyy-MM-dd HH:mm:ss"}
    }
  }
}`

// MappingFor returns the settings/mappings body for an indexable type.
func MappingFor(indexable string) (string, error) {
	switch indexable {
	case "post":
		return postsMapping, nil
	case "user":
		return usersMapping, nil
	}
	return "", fmt.Errorf("no mapping for indexable %q", indexable)
}
