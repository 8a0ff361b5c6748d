package main

// helpText is a single verbatim usage block rather than a generated one.
const helpText = `Usage: deepfind [options] <file-or-dir>... [expression]

deepfind walks one or more files, directories, archives (zip, tar) and
compressed streams (gzip, bzip2, xz, zstd) as a single nested tree,
descending into containers the way a shell glob never could, and applies
a find(1)-style boolean expression to every node visited.

Options:
  --look-into <glob>   only descend into containers whose format name or
                        path matches <glob> (repeatable, "**" supported)
  --min-depth <n>       suppress reporting above depth n (still walked)
  --max-depth <n>       do not descend past depth n
  --descendants-first   report each node after its children, not before
  --config <path>       explicit ~/.deepwalkrc-style config file
  --diagnostics-addr <addr>  serve a read-only metrics dashboard on addr
  --quiet, -q           suppress warnings for recoverable errors
  --verbose, -v         print informational tracing
  --debug               print each root's resolved path before scanning
  --version             print the version string and exit
  --help, -h            print this message and exit

Expression tests:
  -name <glob>  -path <glob>  -type <glob>
  -readable  -writable  -executable
  -size [+-]N[KMG]  -mtime [+-]N  -mmin [+-]N

Expression actions (default: -print):
  -print  -echo <template>  -printf <format> <prop>...  -ls
  -exec <word>... ;  -pipe <word>... ;  -cat
  -copy [--mkdirs] <template>
  -digest <md5|sha1|sha256>  -checksum <CRC32|ADLER32>
  -disassemble  -prune  -delete

Expression operators, highest to lowest precedence:
  ( expr )    ! expr / -not expr    expr expr / expr -a expr / expr && expr
  expr -o expr / expr || expr       expr , expr

Exit status: 0 on success, 1 on a configuration error, 2 on a
recoverable traversal error.
`
